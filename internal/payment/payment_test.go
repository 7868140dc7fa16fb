package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"manifest/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func stripeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newStripe(t *testing.T, rt roundTripFunc) *StripeVerifier {
	t.Helper()
	v, err := NewStripeVerifier(StripeOptions{
		SecretKey:  "sk_test_123",
		BaseURL:    "https://stripe.test/v1",
		HTTPClient: &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("NewStripeVerifier returned error: %v", err)
	}
	return v
}

func TestStripeVerifierIsPaid(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{name: "paid", status: http.StatusOK, body: `{"id":"cs_1","status":"complete","payment_status":"paid"}`, want: true},
		{name: "unpaid", status: http.StatusOK, body: `{"id":"cs_1","status":"open","payment_status":"unpaid"}`},
		{name: "unknown session", status: http.StatusNotFound, body: `{"error":{"message":"No such checkout.session"}}`},
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"Invalid API Key"}}`, wantErr: true},
		{name: "bad json", status: http.StatusOK, body: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newStripe(t, func(r *http.Request) (*http.Response, error) {
				if r.URL.Path != "/v1/checkout/sessions/cs_1" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if user, _, ok := r.BasicAuth(); !ok || user != "sk_test_123" {
					t.Errorf("missing basic auth")
				}
				return stripeResponse(tt.status, tt.body), nil
			})
			got, err := v.IsPaid(context.Background(), "cs_1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("IsPaid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStripeVerifierEmptySession(t *testing.T) {
	v := newStripe(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected for an empty session id")
		return nil, nil
	})
	if paid, err := v.IsPaid(context.Background(), " "); paid || err != nil {
		t.Fatalf("IsPaid = %v, %v; want false, nil", paid, err)
	}
}

type verifierFunc func(context.Context, string) (bool, error)

func (f verifierFunc) IsPaid(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

func TestLedgerConsumeOnce(t *testing.T) {
	l := NewLedger(verifierFunc(func(context.Context, string) (bool, error) { return true, nil }))

	if err := l.Consume(context.Background(), "cs_1"); err != nil {
		t.Fatalf("first Consume returned error: %v", err)
	}
	if !l.Consumed("cs_1") {
		t.Fatal("session should be marked consumed")
	}
	if err := l.Consume(context.Background(), "cs_1"); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("second Consume err = %v, want ErrPaymentRequired", err)
	}

	l.Release("cs_1")
	if err := l.Consume(context.Background(), "cs_1"); err != nil {
		t.Fatalf("Consume after Release returned error: %v", err)
	}
}

func TestLedgerRejectsUnpaidAndErrors(t *testing.T) {
	unpaid := NewLedger(verifierFunc(func(context.Context, string) (bool, error) { return false, nil }))
	if err := unpaid.Consume(context.Background(), "cs_2"); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("err = %v, want ErrPaymentRequired", err)
	}
	if unpaid.Consumed("cs_2") {
		t.Fatal("unpaid session must not stay reserved")
	}

	failing := NewLedger(verifierFunc(func(context.Context, string) (bool, error) { return false, errors.New("timeout") }))
	if err := failing.Consume(context.Background(), "cs_3"); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("err = %v, want ErrPaymentRequired", err)
	}
	if failing.Consumed("cs_3") {
		t.Fatal("session must be released after a verification error")
	}

	if err := unpaid.Consume(context.Background(), ""); !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("empty session err = %v, want ErrPaymentRequired", err)
	}
}

func TestLedgerConcurrentConsume(t *testing.T) {
	var calls int32
	l := NewLedger(verifierFunc(func(context.Context, string) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}))

	var wg sync.WaitGroup
	var accepted int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Consume(context.Background(), "cs_shared"); err == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("accepted = %d, want exactly 1", accepted)
	}
	if calls != 1 {
		t.Fatalf("verifier calls = %d, want 1", calls)
	}
}
