package client_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/luma/goxlr/client"
	"github.com/luma/goxlr/internal/daemontest"
	"github.com/luma/goxlr/protocol"
)

type reply struct {
	frame *protocol.Frame
	err   error
}

func sendAsync(conn *client.Conn, payload interface{}) <-chan reply {
	replies := make(chan reply, 1)

	go func() {
		frame, err := conn.Send(context.Background(), payload)
		replies <- reply{frame: frame, err: err}
	}()

	return replies
}

var _ = Describe("Conn", func() {
	var (
		daemon  *daemontest.Daemon
		conn    *client.Conn
		options client.Options
	)

	// answerPings performs n Ping round trips so the next request gets id n+1.
	answerPings := func(n int) {
		for i := 0; i < n; i++ {
			replies := sendAsync(conn, protocol.Ping)

			req, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())
			Expect(daemon.ReplyOk(req.ID)).To(Succeed())

			var r reply
			Eventually(replies).Should(Receive(&r))
			Expect(r.err).To(Succeed())
		}
	}

	BeforeEach(func() {
		daemon = daemontest.New(daemontest.Options{})
		options = client.Options{
			Host:              daemon.Host(),
			Port:              daemon.Port(),
			KeepaliveInterval: -1,
		}
	})

	JustBeforeEach(func() {
		conn = client.New(options)
		Expect(conn.Connect(context.Background())).To(Succeed())
		Expect(daemon.WaitForConnection(time.Second)).To(Succeed())
		Expect(conn.State()).To(Equal(client.Open))
	})

	AfterEach(func() {
		Expect(conn.Close()).To(Succeed())
		daemon.Close()
	})

	It("sends a request and returns the Ok reply", func() {
		replies := sendAsync(conn, protocol.Ping)

		req, err := daemon.NextRequest(time.Second)
		Expect(err).To(Succeed())
		Expect(req.ID).To(Equal(protocol.ID(1)))
		Expect(req.Data).To(MatchJSON(`"Ping"`))

		Expect(daemon.Send([]byte(`{"id":1,"data":"Ok"}`))).To(Succeed())

		var r reply
		Eventually(replies).Should(Receive(&r))
		Expect(r.err).To(Succeed())
		Expect(r.frame.IsOk()).To(BeTrue())
	})

	It("returns error replies as a DaemonError and ignores keepalive frames", func() {
		answerPings(4)

		replies := sendAsync(conn, protocol.NewDaemonCommand("OpenUi"))

		req, err := daemon.NextRequest(time.Second)
		Expect(err).To(Succeed())
		Expect(req.ID).To(Equal(protocol.ID(5)))

		Expect(daemon.Send([]byte(`{"id":0,"data":"Ping"}`))).To(Succeed())
		Expect(daemon.Send([]byte(`{"id":5,"data":{"Error":"mixer busy"}}`))).To(Succeed())

		var r reply
		Eventually(replies).Should(Receive(&r))

		var daemonErr *client.DaemonError
		Expect(errors.As(r.err, &daemonErr)).To(BeTrue())
		Expect(daemonErr.Message).To(Equal("mixer busy"))
		Expect(daemonErr.ID).To(Equal(protocol.ID(5)))
		Expect(errors.Is(r.err, client.ErrDaemon)).To(BeTrue())
	})

	It("matches replies that arrive out of order", func() {
		answerPings(1)

		a := sendAsync(conn, "A")
		first, err := daemon.NextRequest(time.Second)
		Expect(err).To(Succeed())

		b := sendAsync(conn, "B")
		second, err := daemon.NextRequest(time.Second)
		Expect(err).To(Succeed())

		Expect(first.Data).To(MatchJSON(`"A"`))
		Expect(second.Data).To(MatchJSON(`"B"`))
		Expect(first.ID).To(Equal(protocol.ID(2)))
		Expect(second.ID).To(Equal(protocol.ID(3)))

		Expect(daemon.Reply(second.ID, map[string]string{"Echo": "B"})).To(Succeed())
		Expect(daemon.Reply(first.ID, map[string]string{"Echo": "A"})).To(Succeed())

		var r reply
		Eventually(a).Should(Receive(&r))
		Expect(r.err).To(Succeed())
		Expect(r.frame.Kind).To(Equal(protocol.KindResult))
		Expect(r.frame.Data).To(MatchJSON(`{"Echo":"A"}`))

		Eventually(b).Should(Receive(&r))
		Expect(r.err).To(Succeed())
		Expect(r.frame.Data).To(MatchJSON(`{"Echo":"B"}`))
	})

	It("fails outstanding requests when the daemon goes away", func() {
		answerPings(6)

		replies := sendAsync(conn, protocol.GetStatus)

		req, err := daemon.NextRequest(time.Second)
		Expect(err).To(Succeed())
		Expect(req.ID).To(Equal(protocol.ID(7)))

		Expect(daemon.Disconnect()).To(Succeed())

		var r reply
		Eventually(replies).Should(Receive(&r))
		Expect(errors.Is(r.err, client.ErrConnectionClosed)).To(BeTrue())

		Eventually(conn.Done()).Should(BeClosed())
		Expect(conn.State()).To(Equal(client.Closed))
		Expect(errors.Is(conn.Err(), client.ErrConnectionClosed)).To(BeTrue())

		_, err = conn.Send(context.Background(), protocol.Ping)
		Expect(errors.Is(err, client.ErrNotOpen)).To(BeTrue())

		Eventually(conn.Pushes()).Should(BeClosed())
	})

	It("fails outstanding requests on Close", func() {
		replies := sendAsync(conn, protocol.Ping)

		_, err := daemon.NextRequest(time.Second)
		Expect(err).To(Succeed())

		Expect(conn.Close()).To(Succeed())

		var r reply
		Eventually(replies).Should(Receive(&r))
		Expect(errors.Is(r.err, client.ErrConnectionClosed)).To(BeTrue())
		Expect(conn.Err()).To(BeNil())
		Expect(conn.State()).To(Equal(client.Closed))
	})

	It("refuses to connect twice", func() {
		err := conn.Connect(context.Background())
		Expect(errors.Is(err, client.ErrNotOpen)).To(BeTrue())
	})

	Describe("timeouts", func() {
		BeforeEach(func() {
			options.RequestTimeout = 30 * time.Millisecond
		})

		It("times out requests the daemon never answers and keeps going", func() {
			replies := sendAsync(conn, protocol.Ping)

			req, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())

			var r reply
			Eventually(replies).Should(Receive(&r))

			var timeout *client.TimeoutError
			Expect(errors.As(r.err, &timeout)).To(BeTrue())
			Expect(timeout.ID).To(Equal(req.ID))

			// The late reply is parked and never reaches the next caller
			Expect(daemon.ReplyOk(req.ID)).To(Succeed())

			replies = sendAsync(conn, "Next")
			next, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())
			Expect(next.ID).NotTo(Equal(req.ID))
			Expect(daemon.Reply(next.ID, "Done")).To(Succeed())

			Eventually(replies).Should(Receive(&r))
			Expect(r.err).To(Succeed())
			Expect(r.frame.Data).To(MatchJSON(`"Done"`))

			Expect(conn.State()).To(Equal(client.Open))
			Expect(testutil.ToFloat64(conn.Metrics().Requests.WithLabelValues("timeout"))).To(Equal(1.0))
		})
	})

	Describe("malformed frames", func() {
		It("fails only the caller when its reply can't be decoded", func() {
			replies := sendAsync(conn, protocol.Ping)

			req, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())

			Expect(daemon.Send([]byte(`{"id":1,"data":{"Patch":5}}`))).To(Succeed())
			Expect(req.ID).To(Equal(protocol.ID(1)))

			var r reply
			Eventually(replies).Should(Receive(&r))

			var protoErr *client.ProtocolError
			Expect(errors.As(r.err, &protoErr)).To(BeTrue())
			Expect(protoErr.ID).To(Equal(protocol.ID(1)))
			Expect(errors.Is(r.err, protocol.ErrMalformedFrame)).To(BeTrue())

			Expect(conn.State()).To(Equal(client.Open))
		})

		It("closes the connection when a frame has no id", func() {
			replies := sendAsync(conn, protocol.Ping)

			_, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())

			Expect(daemon.Send([]byte(`{"data":"Ok"}`))).To(Succeed())

			var r reply
			Eventually(replies).Should(Receive(&r))
			Expect(errors.Is(r.err, client.ErrConnectionClosed)).To(BeTrue())
			Expect(errors.Is(r.err, client.ErrProtocol)).To(BeTrue())

			Eventually(conn.Done()).Should(BeClosed())
		})
	})

	Describe("keepalive", func() {
		BeforeEach(func() {
			options.KeepaliveInterval = 10 * time.Millisecond
		})

		It("pings the daemon and swallows the acks", func() {
			Eventually(daemon.Keepalives).Should(BeNumerically(">=", 3))

			Expect(conn.Pushes()).NotTo(Receive())
			Expect(testutil.ToFloat64(conn.Metrics().Keepalives)).To(BeNumerically(">=", 3))

			answerPings(1)
		})
	})

	Describe("pushes", func() {
		replace := func(path, value string) protocol.PatchOp {
			return protocol.PatchOp{Op: protocol.OpReplace, Path: path, Value: []byte(value)}
		}

		It("delivers pushed patches", func() {
			Expect(daemon.Push(replace("/mixers/S201/volume", `10`))).To(Succeed())

			ops, err := conn.ReceivePush(context.Background())
			Expect(err).To(Succeed())
			Expect(ops).To(HaveLen(1))
			Expect(ops[0].Op).To(Equal(protocol.OpReplace))
			Expect(ops[0].Path).To(Equal("/mixers/S201/volume"))
			Expect(ops[0].Value).To(MatchJSON(`10`))
		})

		Context("with a small buffer", func() {
			BeforeEach(func() {
				options.PushBuffer = 1
			})

			It("drops the oldest patches nobody read", func() {
				for _, value := range []string{`1`, `2`, `3`} {
					Expect(daemon.Push(replace("/volume", value))).To(Succeed())
				}

				Eventually(conn.DroppedPushes).Should(Equal(uint64(2)))
				Expect(testutil.ToFloat64(conn.Metrics().PushesDropped)).To(Equal(2.0))

				ops, err := conn.ReceivePush(context.Background())
				Expect(err).To(Succeed())
				Expect(ops[0].Value).To(MatchJSON(`3`))
			})
		})
	})

	Describe("commands", func() {
		It("fetches the status", func() {
			status := make(chan []byte, 1)
			go func() {
				defer GinkgoRecover()

				value, err := conn.GetStatus(context.Background())
				Expect(err).To(Succeed())
				status <- value
			}()

			req, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())
			Expect(req.Data).To(MatchJSON(`"GetStatus"`))
			Expect(daemon.ReplyStatus(req.ID, []byte(`{"mixers":{}}`))).To(Succeed())

			Eventually(status).Should(Receive(MatchJSON(`{"mixers":{}}`)))
		})

		It("wraps device commands with the serial", func() {
			replies := make(chan error, 1)
			go func() {
				_, err := conn.Command(context.Background(), "S201", map[string]interface{}{
					"SetVolume": []interface{}{"Mic", 200},
				})
				replies <- err
			}()

			req, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())
			Expect(req.Data).To(MatchJSON(`{"Command":["S201",{"SetVolume":["Mic",200]}]}`))
			Expect(daemon.ReplyOk(req.ID)).To(Succeed())

			Eventually(replies).Should(Receive(BeNil()))
		})

		It("selects the first mixer from the status", func() {
			selected := make(chan string, 1)
			go func() {
				defer GinkgoRecover()

				serial, err := conn.SelectMixer(context.Background(), "")
				Expect(err).To(Succeed())
				selected <- serial
			}()

			req, err := daemon.NextRequest(time.Second)
			Expect(err).To(Succeed())
			Expect(daemon.ReplyStatus(req.ID, []byte(`{"mixers":{"S201":{},"S305":{}}}`))).To(Succeed())

			Eventually(selected).Should(Receive(Equal("S201")))
		})
	})
})

var _ = Describe("Conn without a daemon", func() {
	It("refuses to send before connecting", func() {
		conn := client.New(client.Options{})
		defer conn.Close()

		_, err := conn.Send(context.Background(), protocol.Ping)

		var stateErr *client.StateError
		Expect(errors.As(err, &stateErr)).To(BeTrue())
		Expect(stateErr.State).To(Equal(client.Disconnected))
	})

	It("reports connection failures and can try again", func() {
		daemon := daemontest.New(daemontest.Options{})
		host, port := daemon.Host(), daemon.Port()
		daemon.Close()

		conn := client.New(client.Options{Host: host, Port: port, KeepaliveInterval: -1})
		defer conn.Close()

		err := conn.Connect(context.Background())

		var connErr *client.ConnectionError
		Expect(errors.As(err, &connErr)).To(BeTrue())
		Expect(connErr.URL).To(Equal(daemon.URL()))
		Expect(conn.State()).To(Equal(client.Disconnected))
	})

	It("closes cleanly without ever connecting", func() {
		conn := client.New(client.Options{})

		Expect(conn.Close()).To(Succeed())
		Expect(conn.State()).To(Equal(client.Closed))
		Eventually(conn.Done()).Should(BeClosed())

		err := conn.Connect(context.Background())
		Expect(errors.Is(err, client.ErrNotOpen)).To(BeTrue())
	})
})
