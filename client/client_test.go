package client_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/secureproxy/secureproxy-go/client"
	"github.com/secureproxy/secureproxy-go/pkg/llm"
	"github.com/secureproxy/secureproxy-go/proxytest"
)

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		srv *proxytest.Server
		c   *client.Client
	)

	startServer := func(cfg proxytest.Config) {
		var err error
		srv, err = proxytest.New(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
	}

	newClient := func(cfg client.Config) *client.Client {
		cfg.BaseURL = srv.URL()
		cl, err := client.New(cfg)
		Expect(err).NotTo(HaveOccurred())
		return cl
	}

	BeforeEach(func() {
		ctx = context.Background()
		startServer(proxytest.Config{ProxyKey: "pk_test"})
		c = newClient(client.Config{ProxyKey: "pk_test"})
	})

	AfterEach(func() {
		Expect(srv.Close()).To(Succeed())
	})

	Describe("New", func() {
		It("rejects an empty proxy key", func() {
			_, err := client.New(client.Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Complete", func() {
		It("returns the first choice's text", func() {
			srv.SetReply("hi")

			text, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("hi"))
		})

		It("sends a single user message with plain text content", func() {
			_, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(err).NotTo(HaveOccurred())

			req := srv.LastChatRequest()
			Expect(req).NotTo(BeNil())
			Expect(req.Model).To(Equal("gpt-4o"))
			Expect(req.Messages).To(HaveLen(1))
			Expect(req.Messages[0].Role).To(Equal(llm.RoleUser))
			Expect(req.Messages[0].Content.Text()).To(Equal("hello"))
		})

		It("fails with ErrNoChoices when the response carries zero choices", func() {
			srv.SetChatHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"x","choices":[]}`))
			}))

			_, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(errors.Is(err, client.ErrNoChoices)).To(BeTrue())
			Expect(errors.Is(err, client.ErrInvalidResponse)).To(BeTrue())
		})
	})

	Describe("Vision", func() {
		It("encodes prompt then image, in that order", func() {
			_, err := c.Vision(ctx, "what is this?", "https://example.com/cat.png", "gpt-4o")
			Expect(err).NotTo(HaveOccurred())

			req := srv.LastChatRequest()
			Expect(req).NotTo(BeNil())
			Expect(req.Messages).To(HaveLen(1))

			parts := req.Messages[0].Content.Parts()
			Expect(parts).To(HaveLen(2))
			Expect(parts[0].Kind).To(Equal(llm.PartKindText))
			Expect(parts[0].Text).To(Equal("what is this?"))
			Expect(parts[1].Kind).To(Equal(llm.PartKindImage))
			Expect(parts[1].ImageURL).To(Equal("https://example.com/cat.png"))
		})
	})

	Describe("ChatCompletion", func() {
		It("passes optional generation parameters through", func() {
			_, err := c.ChatCompletion(ctx, "gpt-4o",
				[]llm.Message{llm.UserMessage("hello")},
				client.WithMaxTokens(64),
				client.WithTemperature(0.7),
			)
			Expect(err).NotTo(HaveOccurred())

			req := srv.LastChatRequest()
			Expect(req.MaxTokens).NotTo(BeNil())
			Expect(*req.MaxTokens).To(Equal(64))
			Expect(req.Temperature).NotTo(BeNil())
			Expect(*req.Temperature).To(Equal(0.7))
		})

		It("omits unset generation parameters", func() {
			_, err := c.ChatCompletion(ctx, "gpt-4o", []llm.Message{llm.UserMessage("hello")})
			Expect(err).NotTo(HaveOccurred())

			req := srv.LastChatRequest()
			Expect(req.MaxTokens).To(BeNil())
			Expect(req.Temperature).To(BeNil())
		})

		It("decodes usage", func() {
			resp, err := c.ChatCompletion(ctx, "gpt-4o", []llm.Message{llm.UserMessage("hello")})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Usage).NotTo(BeNil())
			Expect(resp.Usage.TotalTokens).To(Equal(resp.Usage.PromptTokens + resp.Usage.CompletionTokens))
		})

		Context("status branching", func() {
			It("maps 429 to ErrRateLimitExceeded", func() {
				srv.FailChat(http.StatusTooManyRequests)

				_, err := c.ChatCompletion(ctx, "gpt-4o", []llm.Message{llm.UserMessage("hello")})
				Expect(errors.Is(err, client.ErrRateLimitExceeded)).To(BeTrue())
			})

			It("maps other statuses to NetworkError with the code", func() {
				srv.FailChat(http.StatusInternalServerError)

				_, err := c.ChatCompletion(ctx, "gpt-4o", []llm.Message{llm.UserMessage("hello")})
				var netErr *client.NetworkError
				Expect(errors.As(err, &netErr)).To(BeTrue())
				Expect(netErr.StatusCode).To(Equal(http.StatusInternalServerError))
			})

			It("maps 401 to ErrTokenExpired and clears the cached token", func() {
				// Prime the cache.
				_, err := c.Complete(ctx, "hello", "gpt-4o")
				Expect(err).NotTo(HaveOccurred())
				Expect(srv.AuthCalls()).To(Equal(1))

				srv.FailChat(http.StatusUnauthorized)
				_, err = c.Complete(ctx, "hello", "gpt-4o")
				Expect(errors.Is(err, client.ErrTokenExpired)).To(BeTrue())

				// The next call must re-authenticate.
				srv.FailChat(0)
				_, err = c.Complete(ctx, "hello", "gpt-4o")
				Expect(err).NotTo(HaveOccurred())
				Expect(srv.AuthCalls()).To(Equal(2))
			})
		})
	})

	Describe("token lifecycle", func() {
		It("reuses a cached token across calls within its validity window", func() {
			for i := 0; i < 5; i++ {
				_, err := c.Complete(ctx, "hello", "gpt-4o")
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(srv.AuthCalls()).To(Equal(1))
			Expect(srv.ChatCalls()).To(Equal(5))
		})

		It("refreshes before every call when tokens expire inside the safety buffer", func() {
			Expect(srv.Close()).To(Succeed())
			// 200 s TTL sits inside the 300 s buffer, so the cached token is
			// stale immediately.
			startServer(proxytest.Config{ProxyKey: "pk_test", TokenTTL: 200 * time.Second})
			c = newClient(client.Config{ProxyKey: "pk_test"})

			for i := 0; i < 3; i++ {
				_, err := c.Complete(ctx, "hello", "gpt-4o")
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(srv.AuthCalls()).To(Equal(3))
		})

		It("fails with ErrAuthenticationFailed on a non-200 auth response", func() {
			srv.FailAuth(http.StatusForbidden)
			c = newClient(client.Config{ProxyKey: "pk_test"})

			_, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(errors.Is(err, client.ErrAuthenticationFailed)).To(BeTrue())
			Expect(srv.ChatCalls()).To(BeZero())
		})

		It("fails with ErrAuthenticationFailed on a wrong proxy key", func() {
			c = newClient(client.Config{ProxyKey: "pk_wrong"})

			_, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(errors.Is(err, client.ErrAuthenticationFailed)).To(BeTrue())
		})

		It("fails with ErrInvalidResponse on a malformed auth body", func() {
			srv.SetAuthHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"unexpected": true}`))
			}))

			_, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(errors.Is(err, client.ErrInvalidResponse)).To(BeTrue())
		})
	})

	Describe("split-key signing", func() {
		BeforeEach(func() {
			Expect(srv.Close()).To(Succeed())
			startServer(proxytest.Config{ProxyKey: "pk_test", SecretKey: "sk_test"})
		})

		It("signs auth and completion requests when a secret key is set", func() {
			c = newClient(client.Config{ProxyKey: "pk_test", SecretKey: "sk_test"})

			text, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).NotTo(BeEmpty())
		})

		It("is rejected without the secret half", func() {
			c = newClient(client.Config{ProxyKey: "pk_test"})

			_, err := c.Complete(ctx, "hello", "gpt-4o")
			Expect(errors.Is(err, client.ErrAuthenticationFailed)).To(BeTrue())
		})
	})
})
