package platform

import (
	"fmt"
	"time"
)

// Cause is one hardware- or software-recorded reason for the last system
// restart.
type Cause struct {
	// Name is the short cause identifier, e.g. "powerloss" or "watchdog".
	Name string `json:"cause"`

	// Time is when the cause was recorded.
	Time time.Time `json:"time"`

	// Description carries optional detail from the recording source.
	Description string `json:"description,omitempty"`
}

func (c Cause) String() string {
	if c.Description == "" {
		return fmt.Sprintf("%s (%s)", c.Name, c.Time.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s (%s): %s", c.Name, c.Time.Format(time.RFC3339), c.Description)
}
