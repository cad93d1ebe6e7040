package protocol_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/goxlr/protocol"
)

var _ = Describe("Parsing", func() {
	Describe("Decode()", func() {
		It("returns an error if the frame is not JSON", func() {
			_, err := protocol.Decode([]byte(`{"id": 1, "data": `))
			Expect(err).To(MatchError(protocol.ErrInvalidJSON))
			Expect(errors.Is(err, protocol.ErrMalformedFrame)).To(BeTrue())
		})

		It("returns an error if the frame is not an object", func() {
			_, err := protocol.Decode([]byte(`[1, "Ok"]`))
			Expect(err).To(MatchError(protocol.ErrNotAnObject))
		})

		It("returns an error if there is no id", func() {
			frame, err := protocol.Decode([]byte(`{"data": "Ok"}`))
			Expect(err).To(MatchError(protocol.ErrMissingID))
			Expect(frame).To(BeNil())
		})

		It("returns an error if the id is not an unsigned integer", func() {
			for _, raw := range []string{
				`{"id": "1", "data": "Ok"}`,
				`{"id": -1, "data": "Ok"}`,
				`{"id": 1.5, "data": "Ok"}`,
				`{"id": 18446744073709551616, "data": "Ok"}`,
			} {
				_, err := protocol.Decode([]byte(raw))
				Expect(errors.Is(err, protocol.ErrInvalidID)).To(BeTrue(), raw)
			}
		})

		It("keeps the id of a frame with no data", func() {
			frame, err := protocol.Decode([]byte(`{"id": 4}`))
			Expect(err).To(MatchError(protocol.ErrMissingData))
			Expect(frame.ID).To(Equal(protocol.ID(4)))
			Expect(frame.Kind).To(Equal(protocol.KindInvalid))
			Expect(frame.Err).To(MatchError(protocol.ErrMissingData))
		})

		It("parses the success marker", func() {
			frame, err := protocol.Decode([]byte(`{"id":1,"data":"Ok"}`))
			Expect(err).To(Succeed())
			Expect(frame.ID).To(Equal(protocol.ID(1)))
			Expect(frame.Kind).To(Equal(protocol.KindOk))
			Expect(frame.IsOk()).To(BeTrue())
		})

		It("parses the notification id without losing precision", func() {
			frame, err := protocol.Decode([]byte(`{"id":18446744073709551615,"data":{"Patch":[]}}`))
			Expect(err).To(Succeed())
			Expect(frame.ID).To(Equal(protocol.NotificationID))
			Expect(frame.ID.Class()).To(Equal(protocol.ClassNotification))
		})

		It("parses a status snapshot", func() {
			frame, err := protocol.Decode([]byte(`{"id":2,"data":{"Status":{"mixers":{}}}}`))
			Expect(err).To(Succeed())
			Expect(frame.Kind).To(Equal(protocol.KindStatus))
			Expect(frame.Data).To(MatchJSON(`{"mixers":{}}`))

			var status map[string]interface{}
			Expect(frame.Unmarshal(&status)).To(Succeed())
			Expect(status).To(HaveKey("mixers"))
		})

		It("parses an error", func() {
			frame, err := protocol.Decode([]byte(`{"id":5,"data":{"Error":"mixer busy"}}`))
			Expect(err).To(Succeed())
			Expect(frame.Kind).To(Equal(protocol.KindError))
			Expect(frame.Message).To(Equal("mixer busy"))
		})

		It("returns an error if the Error message is not a string", func() {
			frame, err := protocol.Decode([]byte(`{"id":5,"data":{"Error":42}}`))
			Expect(err).To(MatchError(protocol.ErrMalformedError))
			Expect(frame.ID).To(Equal(protocol.ID(5)))
		})

		It("parses a patch", func() {
			frame, err := protocol.Decode([]byte(`{"id":18446744073709551615,"data":{"Patch":[
				{"op":"replace","path":"/mixers/S1/volume","value":200},
				{"op":"move","path":"/b","from":"/a"},
				{"op":"remove","path":"/c"}
			]}}`))
			Expect(err).To(Succeed())
			Expect(frame.Kind).To(Equal(protocol.KindPatch))
			Expect(frame.Patch).To(HaveLen(3))

			Expect(frame.Patch[0].Op).To(Equal(protocol.OpReplace))
			Expect(frame.Patch[0].Path).To(Equal("/mixers/S1/volume"))
			Expect(frame.Patch[0].Value).To(MatchJSON(`200`))

			Expect(frame.Patch[1].Op).To(Equal(protocol.OpMove))
			Expect(frame.Patch[1].From).To(Equal("/a"))

			Expect(frame.Patch[2].Value).To(BeEmpty())
		})

		It("returns an error if the patch is not a list", func() {
			frame, err := protocol.Decode([]byte(`{"id":9,"data":{"Patch":{"op":"add"}}}`))
			Expect(errors.Is(err, protocol.ErrMalformedPatch)).To(BeTrue())
			Expect(frame.Kind).To(Equal(protocol.KindInvalid))
		})

		It("passes unrecognised replies through as results", func() {
			frame, err := protocol.Decode([]byte(`{"id":3,"data":{"Shiny":{"new":true}}}`))
			Expect(err).To(Succeed())
			Expect(frame.Kind).To(Equal(protocol.KindResult))
			Expect(frame.Data).To(MatchJSON(`{"Shiny":{"new":true}}`))

			frame, err = protocol.Decode([]byte(`{"id":0,"data":"Pong"}`))
			Expect(err).To(Succeed())
			Expect(frame.Kind).To(Equal(protocol.KindResult))
			Expect(frame.Data).To(Equal(json.RawMessage(`"Pong"`)))
		})
	})

	Describe("ID", func() {
		It("classifies reserved ids", func() {
			Expect(protocol.KeepaliveID.Class()).To(Equal(protocol.ClassKeepalive))
			Expect(protocol.NotificationID.Class()).To(Equal(protocol.ClassNotification))
			Expect(protocol.ID(1).Class()).To(Equal(protocol.ClassRequest))

			Expect(protocol.KeepaliveID.Reserved()).To(BeTrue())
			Expect(protocol.NotificationID.Reserved()).To(BeTrue())
			Expect(protocol.ID(42).Reserved()).To(BeFalse())
		})

		It("prints as a decimal number", func() {
			Expect(protocol.NotificationID.String()).To(Equal("18446744073709551615"))
		})
	})
})
