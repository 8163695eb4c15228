package session

import "github.com/hostwire/hostwire/internal/command"

// catalog is the closed command set. Every entry makes its transport
// eligibility explicit: adding a command here is a reviewable safety
// decision, not a listener-side check.
var catalog = []struct {
	name string
	tier command.Tier
}{
	{"get_info", command.NeverLossy},
	{"get_track", command.NeverLossy},
	{"create_track", command.NeverLossy},
	{"delete_track", command.NeverLossy},
	{"start_playback", command.NeverLossy},
	{"stop_playback", command.NeverLossy},
	{"start_record", command.NeverLossy},
	{"stop_record", command.NeverLossy},
	{"undo", command.NeverLossy},
	{"redo", command.NeverLossy},

	{"set_param", command.LossyEligible},
	{"set_tempo", command.LossyEligible},
	{"set_mute", command.LossyEligible},
	{"fire_clip", command.LossyEligible},
}

// Catalog registers the full command surface against one session. Each
// handler is a near-1:1 hop into the session's Invoke contract.
func Catalog(reg *command.Registry, s Session) error {
	for _, entry := range catalog {
		name := entry.name
		err := reg.Register(name, entry.tier, func(params map[string]any) (any, error) {
			return s.Invoke(name, params)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
