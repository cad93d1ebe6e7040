package transport_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/goxlr/internal/daemontest"
	"github.com/luma/goxlr/protocol"
	"github.com/luma/goxlr/transport"
)

var _ = Describe("transport", func() {
	It("bounds writes by default", func() {
		Expect(transport.NewWebSocketDialer(transport.Options{}).WriteTimeout()).To(Equal(transport.DefaultWriteTimeout))
		Expect(transport.NewWebSocketDialer(transport.Options{WriteTimeout: time.Second}).WriteTimeout()).To(Equal(time.Second))
		Expect(transport.NewWebSocketDialer(transport.Options{WriteTimeout: -1}).WriteTimeout()).To(BeNumerically("<", 0))
	})

	It("builds the daemon URL", func() {
		Expect(transport.URL("localhost", 14564)).To(Equal("ws://localhost:14564/api/websocket"))
		Expect(transport.URL("::1", 14564)).To(Equal("ws://[::1]:14564/api/websocket"))
	})

	Describe("WebSocket", func() {
		var (
			daemon *daemontest.Daemon
			socket transport.Socket
		)

		BeforeEach(func() {
			daemon = daemontest.New(daemontest.Options{})

			var err error
			dialer := transport.NewWebSocketDialer(transport.Options{
				WriteTimeout: time.Second,
				Trace:        true,
			})

			socket, err = dialer.Dial(context.Background(), daemon.URL())
			Expect(err).To(Succeed())
			Expect(daemon.WaitForConnection(time.Second)).To(Succeed())
		})

		AfterEach(func() {
			Expect(socket.Close()).To(Succeed())
			daemon.Close()
		})

		It("writes text messages", func() {
			Expect(socket.WriteMessage([]byte(`{"id":3,"data":"GetStatus"}`))).To(Succeed())

			req, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())
			Expect(req.ID).To(Equal(protocol.ID(3)))
			Expect(req.Data).To(MatchJSON(`"GetStatus"`))
		})

		It("reads messages", func() {
			Expect(daemon.ReplyOk(3)).To(Succeed())

			data, err := socket.ReadMessage()
			Expect(err).To(Succeed())
			Expect(data).To(MatchJSON(`{"id":3,"data":"Ok"}`))
		})

		It("fails reads once the daemon hangs up", func() {
			Expect(daemon.Disconnect()).To(Succeed())

			_, err := socket.ReadMessage()
			Expect(err).To(HaveOccurred())
		})

		It("can be closed more than once", func() {
			Expect(socket.Close()).To(Succeed())
			Expect(socket.Close()).To(Succeed())

			_, err := socket.ReadMessage()
			Expect(err).To(HaveOccurred())
		})
	})

	It("fails to dial a daemon that isn't there", func() {
		daemon := daemontest.New(daemontest.Options{})
		url := daemon.URL()
		daemon.Close()

		dialer := transport.NewWebSocketDialer(transport.Options{HandshakeTimeout: time.Second})
		_, err := dialer.Dial(context.Background(), url)
		Expect(err).To(HaveOccurred())
	})
})
