package publisher

import "github.com/kilianp07/smartcharging/core/factory"

var registry = factory.NewRegistry[SchedulePublisher]()

func init() {
	_ = Register("nop", func(map[string]any) (SchedulePublisher, error) {
		return Nop{}, nil
	})
}

// Register adds a publisher factory identified by name.
func Register(name string, f factory.Factory[SchedulePublisher]) error {
	return registry.Register(name, f)
}

// Build creates the publishers named in cfgs. Entries whose type is a key of
// attached reuse that instance instead of the registry; the service attaches
// publishers sharing a connection with another surface.
func Build(cfgs []factory.ModuleConfig, attached map[string]SchedulePublisher) ([]SchedulePublisher, error) {
	out := make([]SchedulePublisher, 0, len(cfgs))
	for _, c := range cfgs {
		if p, ok := attached[c.Type]; ok && p != nil {
			out = append(out, p)
			continue
		}
		p, err := registry.Create(c)
		if err != nil {
			for _, built := range out {
				_ = built.Close()
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
