package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/example/resource-scheduler/internal/capability"
	"github.com/example/resource-scheduler/internal/timeslot"
)

// maxBodyBytes bounds every decoded request body.
const maxBodyBytes = 1 << 20

type slotDTO struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func toSlotDTO(s timeslot.TimeSlot) slotDTO {
	return slotDTO{From: s.From.UTC(), To: s.To.UTC()}
}

func toSlotDTOs(slots []timeslot.TimeSlot) []slotDTO {
	out := make([]slotDTO, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotDTO(s))
	}
	return out
}

// toSlot is not validated here. Facades report malformed slots as field errors.
func (s slotDTO) toSlot() timeslot.TimeSlot {
	return timeslot.TimeSlot{From: s.From.UTC(), To: s.To.UTC()}
}

type capabilityDTO struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c capabilityDTO) toCapability() capability.Capability {
	return capability.Capability{Name: strings.TrimSpace(c.Name), Type: strings.ToUpper(strings.TrimSpace(c.Type))}
}

func toCapabilityDTO(c capability.Capability) capabilityDTO {
	return capabilityDTO{Name: c.Name, Type: c.Type}
}

type resultResponse struct {
	Result bool `json:"result"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// queryWindow reads the from and to query parameters.
func queryWindow(r *http.Request) (timeslot.TimeSlot, error) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return timeslot.TimeSlot{}, errInvalidTimeRange
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return timeslot.TimeSlot{}, errInvalidTimeRange
	}
	return timeslot.TimeSlot{From: from.UTC(), To: to.UTC()}, nil
}
