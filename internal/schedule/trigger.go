package schedule

import "time"

// Trigger is the external recurring-trigger facility the engine drives.
// Install must be idempotent: after it returns, exactly one recurring
// job exists for the policy, replacing any previous registration.
// The engine's responsibility ends at producing the correct next-due
// timestamp; realizing it is the trigger's concern.
type Trigger interface {
	Install(p Policy, due time.Time) error
	Remove() error
	Installed() (bool, error)
}

// NopTrigger ignores registration. Used when scheduling is driven
// purely in-process or in tests.
type NopTrigger struct{}

func (NopTrigger) Install(Policy, time.Time) error { return nil }
func (NopTrigger) Remove() error                   { return nil }
func (NopTrigger) Installed() (bool, error)        { return false, nil }
