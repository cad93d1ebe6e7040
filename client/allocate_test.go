package client

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/goxlr/protocol"
)

var _ = Describe("allocate()", func() {
	var conn *Conn

	BeforeEach(func() {
		conn = New(Options{KeepaliveInterval: -1})
	})

	AfterEach(func() {
		conn.Close()
	})

	next := func() protocol.ID {
		w, err := conn.allocate()
		Expect(err).To(Succeed())
		return w.ID()
	}

	It("counts up from 1", func() {
		Expect(next()).To(Equal(protocol.ID(1)))
		Expect(next()).To(Equal(protocol.ID(2)))
		Expect(next()).To(Equal(protocol.ID(3)))
	})

	It("wraps around past the reserved ids and skips ids still in use", func() {
		conn.lastID = protocol.NotificationID - 2

		_, err := conn.registry.Register(1)
		Expect(err).To(Succeed())
		Expect(conn.registry.Deliver(&protocol.Frame{ID: 2, Kind: protocol.KindOk})).To(Equal(Parked))

		Expect(next()).To(Equal(protocol.NotificationID - 1))
		Expect(next()).To(Equal(protocol.ID(3)))

		Expect(conn.registry.Waiting(1)).To(BeTrue())
		Expect(conn.registry.ParkedLen()).To(Equal(1))
	})

	It("reuses an id once its request is done", func() {
		conn.lastID = protocol.NotificationID - 1

		Expect(next()).To(Equal(protocol.ID(1)))
		conn.registry.Cancel(1)

		conn.lastID = protocol.NotificationID - 1
		Expect(next()).To(Equal(protocol.ID(1)))
	})
})
