package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharging/core/composite"
	"github.com/kilianp07/smartcharging/core/model"
	"github.com/kilianp07/smartcharging/core/station"
	"github.com/kilianp07/smartcharging/core/store"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	lastReq   composite.Request
	calcErr   error
	installed []model.ChargingProfile
	installErr error
	deleted   []int
	filter    store.Filter
	started   map[int]string
	stopErr   error
}

func (f *fakeService) Calculate(_ context.Context, req composite.Request) (model.CompositeSchedule, error) {
	f.lastReq = req
	if f.calcErr != nil {
		return model.CompositeSchedule{}, f.calcErr
	}
	return model.CompositeSchedule{
		EvseID:           req.EvseID,
		Duration:         int(req.End.Sub(req.Start).Seconds()),
		ScheduleStart:    req.Start,
		ChargingRateUnit: model.UnitAmps,
		Periods:          []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: model.Float(16)}},
	}, nil
}

func (f *fakeService) CalculateAll(ctx context.Context, req composite.Request) ([]model.CompositeSchedule, error) {
	var out []model.CompositeSchedule
	for id := 0; id <= 2; id++ {
		req.EvseID = id
		cs, _ := f.Calculate(ctx, req)
		out = append(out, cs)
	}
	return out, nil
}

func (f *fakeService) Profiles(_ context.Context, evseID int) ([]model.ChargingProfile, error) {
	if evseID > 2 {
		return nil, fmt.Errorf("evse %d: %w", evseID, station.ErrUnknownOutlet)
	}
	return nil, nil
}

func (f *fakeService) InstallProfile(_ context.Context, p model.ChargingProfile) error {
	if f.installErr != nil {
		return f.installErr
	}
	f.installed = append(f.installed, p)
	return nil
}

func (f *fakeService) DeleteProfile(_ context.Context, id int) error {
	if id == 404 {
		return fmt.Errorf("profile %d: %w", id, store.ErrNotFound)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) ClearProfiles(_ context.Context, flt store.Filter) ([]model.ChargingProfile, error) {
	f.filter = flt
	return []model.ChargingProfile{{ID: 5}}, nil
}

func (f *fakeService) StartSession(_ context.Context, evseID int, tx string) error {
	if f.started == nil {
		f.started = map[int]string{}
	}
	f.started[evseID] = tx
	return nil
}

func (f *fakeService) StopSession(context.Context, int) error { return f.stopErr }

func (f *fakeService) Sessions() []station.Session { return nil }

func newServer(t *testing.T, svc Service, token string) *httptest.Server {
	h := &Handler{svc: svc, token: token, now: func() time.Time { return t0 }}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCompositeSchedule(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, "")

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/evses/1/composite-schedule?duration=3600&unit=A&start=2024-01-01T13:00:00Z&discharge=true&exclude_external=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cs model.CompositeSchedule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cs))
	assert.Equal(t, 1, cs.EvseID)
	assert.Equal(t, 3600, cs.Duration)

	assert.Equal(t, t0.Add(time.Hour), svc.lastReq.Start)
	assert.Equal(t, model.UnitAmps, svc.lastReq.Unit)
	assert.True(t, svc.lastReq.IncludeDischarge)
	assert.True(t, svc.lastReq.ExcludeExternalConstraints)
	assert.False(t, svc.lastReq.SimulateSession)
}

func TestCompositeSchedule_Defaults(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, "")
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/evses/0/composite-schedule", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, t0, svc.lastReq.Start)
	assert.Equal(t, t0.Add(DefaultDuration), svc.lastReq.End)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", &composite.InputError{Kind: composite.ErrUnsupportedUnit}, http.StatusBadRequest},
		{"unknown outlet", fmt.Errorf("calc: %w", &composite.InputError{Kind: composite.ErrUnknownOutlet, Msg: "9"}), http.StatusNotFound},
		{"bad window", &composite.InputError{Kind: composite.ErrInvalidWindow}, http.StatusBadRequest},
		{"store", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeService{calcErr: tt.err}, "")
			resp := do(t, http.MethodGet, srv.URL+"/api/v1/evses/1/composite-schedule", "")
			assert.Equal(t, tt.want, resp.StatusCode)
			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}

	srv := newServer(t, &fakeService{}, "")
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/v1/evses/x/composite-schedule", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/v1/evses/1/composite-schedule?duration=-5", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/v1/evses/1/composite-schedule?discharge=maybe", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/api/v1/evses/7/profiles", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, srv.URL+"/api/v1/profiles/404", "").StatusCode)
}

func TestAllSchedules(t *testing.T) {
	srv := newServer(t, &fakeService{}, "")
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/composite-schedules?duration=600", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []model.CompositeSchedule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[2].EvseID)
}

const txDefault = `{"id":3,"stackLevel":0,"chargingProfilePurpose":"TxDefaultProfile","chargingProfileKind":"Absolute",
"chargingSchedule":[{"id":1,"chargingRateUnit":"A","chargingSchedulePeriod":[{"startPeriod":0,"limit":16}]}]}`

func TestPutProfile(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, "")

	resp := do(t, http.MethodPut, srv.URL+"/api/v1/evses/2/profiles", txDefault)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, svc.installed, 1)
	assert.Equal(t, 2, svc.installed[0].EvseID)

	mismatch := strings.Replace(txDefault, `"id":3,`, `"id":3,"evseId":1,`, 1)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPut, srv.URL+"/api/v1/evses/2/profiles", mismatch).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPut, srv.URL+"/api/v1/evses/2/profiles", `{"bogus":1}`).StatusCode)

	svc.installErr = &model.ValidationError{ProfileID: 3, Problems: []string{"periods must start at 0"}}
	resp = do(t, http.MethodPut, srv.URL+"/api/v1/evses/2/profiles", txDefault)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"periods must start at 0"}, body.Problems)
}

func TestDeleteAndClearProfiles(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, "")

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/api/v1/profiles/8", "").StatusCode)
	assert.Equal(t, []int{8}, svc.deleted)

	resp := do(t, http.MethodDelete, srv.URL+"/api/v1/profiles?evse=1&purpose=TxProfile&stack_level=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.filter.EvseID)
	assert.Equal(t, 1, *svc.filter.EvseID)
	assert.Equal(t, 2, *svc.filter.StackLevel)
	assert.Equal(t, model.PurposeTx, svc.filter.Purpose)
	assert.Nil(t, svc.filter.ProfileID)
	var body map[string][]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []int{5}, body["removed"])
}

func TestSessions(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, "")

	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/v1/evses/1/session", `{"transactionId":"tx-1"}`).StatusCode)
	assert.Equal(t, "tx-1", svc.started[1])
	assert.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/v1/evses/2/session", "").StatusCode)

	svc.stopErr = fmt.Errorf("evse 1: %w", station.ErrNoSession)
	assert.Equal(t, http.StatusConflict, do(t, http.MethodDelete, srv.URL+"/api/v1/evses/1/session", "").StatusCode)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sessions []station.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	assert.Empty(t, sessions)
}

func TestBearerToken(t *testing.T) {
	srv := newServer(t, &fakeService{}, "secret")
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/api/v1/sessions", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/v1/sessions", "", "Authorization", "Bearer secret").StatusCode)
	// Health and metrics stay public.
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/metrics", "").StatusCode)
}
