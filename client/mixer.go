package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	ErrNoMixers      = errors.New("No mixers found")
	ErrMixerNotFound = errors.New("Mixer not found")
)

type MixerNotFoundError struct {
	Serial string
}

func (e *MixerNotFoundError) Error() string {
	return fmt.Sprintf("Mixer with serial %s not found", e.Serial)
}

func (e *MixerNotFoundError) Is(target error) bool {
	return target == ErrMixerNotFound
}

// SelectMixer picks a mixer from a status snapshot and returns its serial. An
// empty serial picks the first mixer the daemon lists, otherwise the mixer
// must exist.
func SelectMixer(status json.RawMessage, serial string) (string, error) {
	mixers := gjson.GetBytes(status, "mixers")
	if !mixers.IsObject() {
		return "", ErrNoMixers
	}

	var first string
	found := false

	mixers.ForEach(func(key, _ gjson.Result) bool {
		if first == "" {
			first = key.String()
		}

		if serial != "" && key.String() == serial {
			found = true
			return false
		}

		return serial != ""
	})

	switch {
	case first == "":
		return "", ErrNoMixers
	case serial == "":
		return first, nil
	case !found:
		return "", &MixerNotFoundError{Serial: serial}
	default:
		return serial, nil
	}
}

// SelectMixer fetches the status and picks a mixer from it, see SelectMixer.
func (c *Conn) SelectMixer(ctx context.Context, serial string) (string, error) {
	status, err := c.GetStatus(ctx)
	if err != nil {
		return "", err
	}

	return SelectMixer(status, serial)
}
