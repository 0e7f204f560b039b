package gateway

import (
	"context"
	"fmt"
	"sync"

	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
)

// Fake is an in-memory gateway for tests and local development.
type Fake struct {
	mu sync.Mutex

	FailCharges bool
	Unreachable bool
	intents     int
	charges     int

	IntentRequests []paymentdomain.GatewayIntentRequest
	ChargeRequests []paymentdomain.GatewayChargeRequest
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) CreateIntent(ctx context.Context, req paymentdomain.GatewayIntentRequest) (paymentdomain.GatewayIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unreachable {
		return paymentdomain.GatewayIntent{}, paymentdomain.ErrGatewayUnavailable
	}
	f.intents++
	f.IntentRequests = append(f.IntentRequests, req)
	intentID := fmt.Sprintf("pi_fake_%d", f.intents)
	return paymentdomain.GatewayIntent{
		IntentID:     intentID,
		ClientSecret: intentID + "_secret",
		Raw:          []byte(fmt.Sprintf(`{"id":%q,"status":"requires_payment_method"}`, intentID)),
	}, nil
}

func (f *Fake) Charge(ctx context.Context, req paymentdomain.GatewayChargeRequest) (paymentdomain.GatewayCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unreachable {
		return paymentdomain.GatewayCharge{}, paymentdomain.ErrGatewayUnavailable
	}
	f.charges++
	f.ChargeRequests = append(f.ChargeRequests, req)
	chargeID := fmt.Sprintf("ch_fake_%d", f.charges)
	if f.FailCharges {
		return paymentdomain.GatewayCharge{
			ChargeID: chargeID,
			Paid:     false,
			Failure:  "card_declined",
			Raw:      []byte(fmt.Sprintf(`{"id":%q,"paid":false}`, chargeID)),
		}, nil
	}
	return paymentdomain.GatewayCharge{
		ChargeID: chargeID,
		Paid:     true,
		Raw:      []byte(fmt.Sprintf(`{"id":%q,"paid":true}`, chargeID)),
	}, nil
}
