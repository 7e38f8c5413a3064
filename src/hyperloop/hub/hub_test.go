package hub_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/hub"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/trace"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/ws"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Hub", func() {
	var (
		subject *hub.Hub
		server  *httptest.Server
		url     string
		clients []hyperloop.Client
	)

	dial := func() hyperloop.Client {
		c, err := ws.Dial(url)
		Expect(err).ShouldNot(HaveOccurred())

		clients = append(clients, c)
		return c
	}

	BeforeEach(func() {
		subject = hub.New()
		server = httptest.NewServer(subject)
		url = strings.Replace(server.URL, "http", "ws", 1)
		clients = nil
	})

	AfterEach(func() {
		for _, c := range clients {
			c.Stop()
			<-c.Done()
		}

		subject.Stop()
		<-subject.Done()

		server.Close()
	})

	It("routes a call to a provider and the result back to the requester", func() {
		provider := dial()
		requester := dial()

		err := provider.Register(
			"echo",
			hyperloop.ArgsInfo{"message": "the string to return"},
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				var args struct {
					Message string `json:"message"`
				}
				if err := req.Bind(&args); err != nil {
					return nil, err
				}

				return map[string]string{"message": args.Message}, nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		result, err := requester.Call(
			context.Background(),
			"echo",
			map[string]string{"message": "hi"},
		)

		Expect(err).ShouldNot(HaveOccurred())
		Expect([]byte(result)).To(MatchJSON(`{"message": "hi"}`))
	})

	It("propagates the trace ID to the providing handler", func() {
		provider := dial()
		requester := dial()

		err := provider.Register(
			"whoami",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return trace.Get(ctx), nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		ctx := trace.With(context.Background(), "<trace>")

		result, err := requester.Call(ctx, "whoami", nil)

		Expect(err).ShouldNot(HaveOccurred())
		Expect([]byte(result)).To(MatchJSON(`"<trace>"`))
	})

	It("lets a client call its own functions", func() {
		peer := dial()

		err := peer.Register(
			"echo",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return "pong", nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		result, err := peer.Call(context.Background(), "echo", nil)

		Expect(err).ShouldNot(HaveOccurred())
		Expect([]byte(result)).To(MatchJSON(`"pong"`))
	})

	It("fails a call to an unregistered function without waiting for a timeout", func() {
		requester := dial()

		_, err := requester.Call(context.Background(), "<unknown>", nil)

		Expect(hyperloop.IsFunctionNotFound(err)).To(BeTrue())
	})

	It("resolves concurrent calls independently of completion order", func() {
		provider := dial()
		requester := dial()

		release := make(chan struct{})

		err := provider.Register(
			"slow",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				<-release
				return "slow", nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		err = provider.Register(
			"fast",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return "fast", nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		slowResult := make(chan json.RawMessage, 1)
		slowErr := make(chan error, 1)

		go func() {
			r, err := requester.Call(context.Background(), "slow", nil)
			slowResult <- r
			slowErr <- err
		}()

		fast, err := requester.Call(context.Background(), "fast", nil)
		Expect(err).ShouldNot(HaveOccurred())
		Expect([]byte(fast)).To(MatchJSON(`"fast"`))

		close(release)

		Expect([]byte(<-slowResult)).To(MatchJSON(`"slow"`))
		Expect(<-slowErr).ShouldNot(HaveOccurred())
	})

	It("ignores return values for unknown call identifiers", func() {
		provider := dial()
		requester := dial()

		err := provider.Register(
			"echo",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return "pong", nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		// a connection that speaks the protocol directly, so stray frames
		// can be injected without client-side correlation in the way
		raw, _, err := websocket.DefaultDialer.Dial(url, nil)
		Expect(err).ShouldNot(HaveOccurred())
		defer raw.Close()

		stray := []byte(`{"type":"return_value","call_identifier":"DEAD-00000BEE","data":{"error":false,"result":"stray"}}`)

		// twice: once for the unknown-id path, once for the duplicate path
		Expect(raw.WriteMessage(websocket.TextMessage, stray)).To(Succeed())
		Expect(raw.WriteMessage(websocket.TextMessage, stray)).To(Succeed())

		result, err := requester.Call(context.Background(), "echo", nil)

		Expect(err).ShouldNot(HaveOccurred())
		Expect([]byte(result)).To(MatchJSON(`"pong"`))
	})

	It("replaces a function when the same ID is registered again", func() {
		provider := dial()
		requester := dial()

		register := func(reply string) {
			err := provider.Register(
				"echo",
				nil,
				func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
					return reply, nil
				},
			)
			Expect(err).ShouldNot(HaveOccurred())
		}

		register("first")
		register("second")

		result, err := requester.Call(context.Background(), "echo", nil)

		Expect(err).ShouldNot(HaveOccurred())
		Expect([]byte(result)).To(MatchJSON(`"second"`))
	})

	It("serves the directory of registered functions", func() {
		provider := dial()
		requester := dial()

		err := provider.Register(
			"echo",
			hyperloop.ArgsInfo{"message": "the string to return"},
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return nil, nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		err = provider.Register(
			"reverse",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return nil, nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		fns, err := requester.Functions(context.Background())
		Expect(err).ShouldNot(HaveOccurred())

		ids := map[string]hyperloop.ArgsInfo{}
		for _, fn := range fns {
			ids[fn.ID] = fn.Args
		}

		Expect(ids).To(HaveLen(2))
		Expect(ids).To(HaveKeyWithValue(
			"echo",
			hyperloop.ArgsInfo{"message": "the string to return"},
		))
		Expect(ids).To(HaveKey("reverse"))
	})

	It("returns a handler error to the requester as a failure", func() {
		provider := dial()
		requester := dial()

		err := provider.Register(
			"fail",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return nil, errors.New("<the handler failed>")
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		_, err = requester.Call(context.Background(), "fail", nil)

		Expect(hyperloop.IsFailure(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("<the handler failed>"))
	})

	It("survives a panicking handler and fails only that call", func() {
		provider := dial()
		requester := dial()

		err := provider.Register(
			"panic",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				panic("<boom>")
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		err = provider.Register(
			"ok",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				return "ok", nil
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		_, err = requester.Call(context.Background(), "panic", nil)
		Expect(hyperloop.IsFailure(err)).To(BeTrue())

		result, err := requester.Call(context.Background(), "ok", nil)
		Expect(err).ShouldNot(HaveOccurred())
		Expect([]byte(result)).To(MatchJSON(`"ok"`))
	})

	It("fails outstanding calls when the provider disconnects", func() {
		provider := dial()
		requester := dial()

		entered := make(chan struct{})

		err := provider.Register(
			"hang",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				close(entered)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		go func() {
			defer GinkgoRecover()
			<-entered
			provider.Stop()
		}()

		_, err = requester.Call(context.Background(), "hang", nil)

		Expect(hyperloop.IsFailureReason(hyperloop.ReasonProviderDisconnected, err)).To(BeTrue())
	})

	It("honors the requester's deadline", func() {
		provider := dial()
		requester := dial()

		err := provider.Register(
			"hang",
			nil,
			func(ctx context.Context, req hyperloop.Request) (interface{}, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		)
		Expect(err).ShouldNot(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err = requester.Call(ctx, "hang", nil)

		Expect(err).To(Equal(context.DeadlineExceeded))
	})

	It("delivers broadcasts to every connected client", func() {
		received := make(chan json.RawMessage, 10)

		listener := dial()
		listener.OnBroadcast(func(payload json.RawMessage) {
			received <- payload
		})

		err := subject.Broadcast(map[string]string{"announcement": "<hello>"})
		Expect(err).ShouldNot(HaveOccurred())

		// the hub also broadcasts client counts as peers come and go, so
		// scan for the payload rather than asserting on the first one
		deadline := time.After(5 * time.Second)
		for {
			select {
			case payload := <-received:
				var msg struct {
					Announcement string `json:"announcement"`
				}
				if json.Unmarshal(payload, &msg) == nil && msg.Announcement == "<hello>" {
					return
				}
			case <-deadline:
				Fail("timed-out waiting for the broadcast payload")
			}
		}
	})

	It("broadcasts the connected client count as peers join", func() {
		received := make(chan json.RawMessage, 10)

		listener := dial()
		listener.OnBroadcast(func(payload json.RawMessage) {
			received <- payload
		})

		dial()

		deadline := time.After(5 * time.Second)
		for {
			select {
			case payload := <-received:
				var msg struct {
					Count *int `json:"num_connected_clients"`
				}
				if json.Unmarshal(payload, &msg) == nil && msg.Count != nil && *msg.Count == 2 {
					return
				}
			case <-deadline:
				Fail("timed-out waiting for the client-count broadcast")
			}
		}
	})

	It("reports the number of connected clients", func() {
		dial()
		dial()

		Eventually(subject.NumClients).Should(Equal(2))
	})
})
