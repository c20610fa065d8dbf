package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kcterala/kit/pkg/auth"
	"github.com/kcterala/kit/pkg/credentials"
)

// providerStub serves the device code and token endpoints from canned responses.
type providerStub struct {
	mu sync.Mutex

	deviceStatus int
	device       map[string]any
	polls        []map[string]any
	pollStatus   []int

	events    []string
	pollForms []map[string]string
}

func (p *providerStub) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *providerStub) eventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *providerStub) forms() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]string(nil), p.pollForms...)
}

func (p *providerStub) pollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pollForms)
}

func (p *providerStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/device/code", func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		Expect(r.Method).To(Equal(http.MethodPost))
		Expect(r.ParseForm()).To(Succeed())
		Expect(r.PostForm.Get("client_id")).To(Equal("test-client"))
		Expect(r.PostForm.Get("scope")).To(Equal("read:user public_repo"))
		Expect(r.Header.Get("Accept")).To(Equal("application/json"))

		p.record("device")
		if p.deviceStatus != 0 {
			w.WriteHeader(p.deviceStatus)
			_, _ = w.Write([]byte("boom"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.device)
	})
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		Expect(r.ParseForm()).To(Succeed())

		p.mu.Lock()
		idx := len(p.pollForms)
		p.pollForms = append(p.pollForms, map[string]string{
			"client_id":   r.PostForm.Get("client_id"),
			"device_code": r.PostForm.Get("device_code"),
			"grant_type":  r.PostForm.Get("grant_type"),
		})
		p.events = append(p.events, "poll")
		p.mu.Unlock()

		Expect(idx).To(BeNumerically("<", len(p.polls)), "unexpected extra poll")
		w.Header().Set("Content-Type", "application/json")
		if idx < len(p.pollStatus) && p.pollStatus[idx] != 0 {
			w.WriteHeader(p.pollStatus[idx])
		}
		_ = json.NewEncoder(w).Encode(p.polls[idx])
	})
	return mux
}

// fakeClock advances only when the flow sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	stub   *providerStub
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	c.stub.record("sleep")
	return nil
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum time.Duration
	for _, d := range c.sleeps {
		sum += d
	}
	return sum
}

var _ = Describe("Flow", func() {
	var (
		stub    *providerStub
		server  *httptest.Server
		clock   *fakeClock
		store   *credentials.MemoryStore
		out     *bytes.Buffer
		browser []string
		flow    *auth.Flow
	)

	BeforeEach(func() {
		orig, had := os.LookupEnv(auth.NoBrowserEnv)
		Expect(os.Unsetenv(auth.NoBrowserEnv)).To(Succeed())
		DeferCleanup(func() {
			if had {
				_ = os.Setenv(auth.NoBrowserEnv, orig)
			} else {
				_ = os.Unsetenv(auth.NoBrowserEnv)
			}
		})

		stub = &providerStub{
			device: map[string]any{
				"device_code":      "d1",
				"user_code":        "ABCD-1234",
				"verification_uri": "https://github.com/login/device",
				"interval":         5,
			},
		}
		server = httptest.NewServer(stub.handler())
		clock = &fakeClock{now: time.Unix(1_700_000_000, 0), stub: stub}
		store = credentials.NewMemoryStore(nil)
		out = &bytes.Buffer{}
		browser = nil

		flow = &auth.Flow{
			Config: auth.Config{
				ClientID:      "test-client",
				Scope:         "read:user public_repo",
				DeviceCodeURL: server.URL + "/login/device/code",
				TokenURL:      server.URL + "/login/oauth/access_token",
			},
			Store:      store,
			HTTPClient: server.Client(),
			Out:        out,
			OpenBrowser: func(u string) error {
				browser = append(browser, u)
				return nil
			},
			CopyToClipboard: func(string) error { return nil },
			Sleep:           clock.Sleep,
			Now:             clock.Now,
		}
	})

	AfterEach(func() {
		server.Close()
	})

	It("authorizes after a pending poll and stores the token", func() {
		stub.polls = []map[string]any{
			{"error": "authorization_pending"},
			{"access_token": "ghu_xxx", "token_type": "bearer"},
		}

		token, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("ghu_xxx"))
		Expect(flow.State()).To(Equal(auth.StateAuthorized))

		Expect(stub.pollCount()).To(Equal(2))
		Expect(clock.sleeps).To(Equal([]time.Duration{5 * time.Second, 5 * time.Second}))
		Expect(clock.total()).To(Equal(10 * time.Second))

		rec, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Token).To(Equal("ghu_xxx"))
	})

	It("sleeps before every poll including the first", func() {
		stub.polls = []map[string]any{
			{"error": "authorization_pending"},
			{"error": "authorization_pending"},
			{"access_token": "ghu_xxx"},
		}

		_, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stub.eventLog()).To(Equal([]string{"device", "sleep", "poll", "sleep", "poll", "sleep", "poll"}))
	})

	It("sends the device code grant on every poll", func() {
		stub.polls = []map[string]any{{"access_token": "ghu_xxx"}}

		_, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stub.forms()).To(ConsistOf(map[string]string{
			"client_id":   "test-client",
			"device_code": "d1",
			"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
		}))
	})

	It("shows the user code and opens the verification URL", func() {
		stub.polls = []map[string]any{{"access_token": "ghu_xxx"}}

		_, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(ContainSubstring("Enter this code: ABCD-1234"))
		Expect(browser).To(Equal([]string{"https://github.com/login/device"}))
	})

	It("keeps going when the browser cannot be opened", func() {
		flow.OpenBrowser = func(string) error { return errors.New("no display") }
		flow.CopyToClipboard = func(string) error { return errors.New("no clipboard") }
		stub.polls = []map[string]any{{"access_token": "ghu_xxx"}}

		token, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("ghu_xxx"))
		Expect(out.String()).To(ContainSubstring("https://github.com/login/device"))
	})

	It("never changes the interval on authorization_pending", func() {
		stub.polls = []map[string]any{
			{"error": "authorization_pending"},
			{"error": "authorization_pending"},
			{"error": "authorization_pending"},
			{"access_token": "ghu_xxx"},
		}

		_, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(clock.sleeps).To(HaveLen(4))
		for _, d := range clock.sleeps {
			Expect(d).To(Equal(5 * time.Second))
		}
	})

	It("backs off by five seconds on slow_down", func() {
		stub.polls = []map[string]any{
			{"error": "slow_down"},
			{"error": "authorization_pending"},
			{"access_token": "ghu_xxx"},
		}

		_, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(clock.sleeps).To(Equal([]time.Duration{5 * time.Second, 10 * time.Second, 10 * time.Second}))
	})

	It("fails with ErrDenied on access_denied and stores nothing", func() {
		stub.polls = []map[string]any{
			{"error": "authorization_pending"},
			{"error": "access_denied"},
		}

		_, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrDenied)).To(BeTrue())
		Expect(flow.State()).To(Equal(auth.StateDenied))
		Expect(store.Saves()).To(BeZero())

		_, err = store.Load()
		Expect(errors.Is(err, credentials.ErrNotFound)).To(BeTrue())
	})

	It("surfaces other provider errors verbatim", func() {
		stub.polls = []map[string]any{
			{"error": "incorrect_client_credentials", "error_description": "bad client"},
		}

		_, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrProvider)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("incorrect_client_credentials"))
		Expect(flow.State()).To(Equal(auth.StateProviderError))
		Expect(store.Saves()).To(BeZero())
	})

	It("fails with ErrExpired on expired_token", func() {
		stub.polls = []map[string]any{{"error": "expired_token"}}

		_, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrExpired)).To(BeTrue())
	})

	It("stops once the device code lifetime has passed", func() {
		stub.device["expires_in"] = 12
		stub.polls = []map[string]any{
			{"error": "authorization_pending"},
			{"error": "authorization_pending"},
		}

		_, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrExpired)).To(BeTrue())
		Expect(stub.pollCount()).To(Equal(2))
		Expect(flow.State()).To(Equal(auth.StateExpired))
	})

	It("aborts without polling when the device endpoint fails", func() {
		stub.deviceStatus = http.StatusInternalServerError

		_, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrTransport)).To(BeTrue())
		Expect(stub.pollCount()).To(BeZero())
		Expect(clock.sleeps).To(BeEmpty())
		Expect(store.Saves()).To(BeZero())
	})

	It("treats a non-2xx token response without an error code as fatal", func() {
		stub.polls = []map[string]any{
			{},
			{"access_token": "ghu_x"},
		}
		stub.pollStatus = []int{http.StatusServiceUnavailable}

		_, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrTransport)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("503"))
		Expect(stub.pollCount()).To(Equal(1))
		Expect(store.Saves()).To(BeZero())
	})

	It("does not retry a non-2xx response with a non-error body", func() {
		stub.polls = []map[string]any{
			{"message": "Service Unavailable"},
			{"access_token": "ghu_x"},
		}
		stub.pollStatus = []int{http.StatusServiceUnavailable}

		token, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrTransport)).To(BeTrue())
		Expect(token).To(BeEmpty())
		Expect(stub.pollCount()).To(Equal(1))
	})

	It("honours error codes sent with a 400 status", func() {
		stub.polls = []map[string]any{
			{"error": "authorization_pending"},
			{"access_token": "ghu_xxx"},
		}
		stub.pollStatus = []int{http.StatusBadRequest}

		token, err := flow.Login(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("ghu_xxx"))
		Expect(stub.pollCount()).To(Equal(2))
	})

	It("reports a transport error when the token endpoint is unreachable", func() {
		flow.Config.TokenURL = "http://127.0.0.1:1/unreachable"

		_, err := flow.Login(context.Background())
		Expect(errors.Is(err, auth.ErrTransport)).To(BeTrue())
		Expect(store.Saves()).To(BeZero())
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := flow.Login(ctx)
		Expect(err).To(HaveOccurred())
		Expect(store.Saves()).To(BeZero())
	})

	It("requires a client id", func() {
		flow.Config.ClientID = ""
		_, err := flow.Login(context.Background())
		Expect(err).To(MatchError(ContainSubstring("client id is required")))
	})
})

var _ = Describe("Interpret", func() {
	DescribeTable("classifies token responses",
		func(token, code, desc string, want auth.OutcomeKind) {
			Expect(auth.Interpret(token, code, desc).Kind).To(Equal(want))
		},
		Entry("access token", "ghu_x", "", "", auth.OutcomeSuccess),
		Entry("token wins over error", "ghu_x", "authorization_pending", "", auth.OutcomeSuccess),
		Entry("pending", "", "authorization_pending", "", auth.OutcomeContinue),
		Entry("empty response", "", "", "", auth.OutcomeContinue),
		Entry("slow down", "", "slow_down", "", auth.OutcomeSlowDown),
		Entry("denied", "", "access_denied", "", auth.OutcomeDenied),
		Entry("expired", "", "expired_token", "", auth.OutcomeExpired),
		Entry("unknown", "", "unsupported_grant_type", "", auth.OutcomeError),
	)

	It("includes the description in provider errors", func() {
		got := auth.Interpret("", "device_flow_disabled", "Device flow is disabled")
		Expect(got.Error).To(Equal("device_flow_disabled (Device flow is disabled)"))
	})
})

var _ = Describe("State", func() {
	It("marks only final states as terminal", func() {
		Expect(auth.StatePolling.Terminal()).To(BeFalse())
		Expect(auth.StateAuthorized.Terminal()).To(BeTrue())
		Expect(auth.StateDenied.Terminal()).To(BeTrue())
		Expect(auth.StateProviderError.String()).To(Equal("provider-error"))
	})
})
