package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chora/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals EntityChangedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.EntityChangedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeEntityChanged,
			EventID:       "evt_123",
			EmittedAt:     now,
			SiteID:        "user-ada",
			EntityID:      "learning-osmosis",
			EntityType:    "learning",
			CircleIDs:     []string{"circle-garden"},
			Data:          map[string]any{"title": "osmosis"},
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("entity_id"))
		Expect(got).To(HaveKey("entity_type"))
		Expect(got).To(HaveKey("circle_ids"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeEntityChanged).To(Equal("chora.entity.changed"))
	})

	It("provides ErrNilEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilEvent).To(MatchError("nil entity event"))
	})
})
