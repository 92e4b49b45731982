package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"chikondi_backend/internal/models"
	"chikondi_backend/internal/paychangu"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// --- фейки репозиториев ---

type fakePaymentRepo struct {
	mu      sync.Mutex
	records map[string]*models.PaymentRecord
}

func newFakePaymentRepo(records ...*models.PaymentRecord) *fakePaymentRepo {
	r := &fakePaymentRepo{records: map[string]*models.PaymentRecord{}}
	for _, rec := range records {
		r.records[rec.TxRef] = rec
	}
	return r
}

func (r *fakePaymentRepo) Create(p *models.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[p.TxRef] = p
	return nil
}

func (r *fakePaymentRepo) FindByTxRef(txRef string) (*models.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[txRef]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *fakePaymentRepo) FindByUser(userID string, page, pageSize int) ([]models.PaymentRecord, int64, error) {
	return nil, 0, nil
}

func (r *fakePaymentRepo) FindAll(criteria repositories.PaymentCriteria) ([]models.PaymentRecord, int64, error) {
	return nil, 0, nil
}

// MarkSettled повторяет семантику условного апдейта в памяти
func (r *fakePaymentRepo) MarkSettled(txRef string, status models.PaymentStatus, metadata datatypes.JSON) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[txRef]
	if !ok || rec.Status == models.PaymentStatusCompleted {
		return false, nil
	}
	rec.Status = status
	rec.Metadata = metadata
	return true, nil
}

func (r *fakePaymentRepo) FindStalePending(olderThan time.Time, limit int) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (r *fakePaymentRepo) GetRevenueStats() (*repositories.RevenueStats, error) {
	return &repositories.RevenueStats{}, nil
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	credits map[string]int64 // tx_ref -> net
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{credits: map[string]int64{}}
}

func (r *fakeWalletRepo) FindByTxRef(txRef string) (*models.WalletTransaction, error) {
	return nil, repositories.ErrWalletTxNotFound
}

func (r *fakeWalletRepo) FindByUser(userID string, page, pageSize int) ([]models.WalletTransaction, int64, error) {
	return nil, 0, nil
}

func (r *fakeWalletRepo) GetBalance(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, net := range r.credits {
		sum += net
	}
	return sum, nil
}

func (r *fakeWalletRepo) CreditTopup(userID, txRef string, txType models.WalletTxType, gross, fee int64, metadata datatypes.JSON) (*models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credits[txRef]; ok {
		return nil, repositories.ErrAlreadyCredited
	}
	r.credits[txRef] = gross - fee
	return &models.WalletTransaction{
		UserID: userID, TxRef: txRef, Type: txType,
		GrossAmount: gross, Fee: fee, NetAmount: gross - fee,
	}, nil
}

type fakeSubscriptionRepo struct {
	mu          sync.Mutex
	activations []string // tier каждой активации
}

func (r *fakeSubscriptionRepo) ActivateTier(userID, tier string, days int) (*models.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activations = append(r.activations, tier)
	return &models.UserSubscription{
		UserID: userID, Tier: tier, IsActive: true,
		StartDate: time.Now(), EndDate: time.Now().AddDate(0, 0, days),
	}, nil
}

func (r *fakeSubscriptionRepo) FindActiveByUser(userID string) (*models.UserSubscription, error) {
	return nil, repositories.ErrSubscriptionNotFound
}

func (r *fakeSubscriptionRepo) ExpireOverdue(now time.Time) (int64, error) { return 0, nil }

type fakeNotificationRepo struct {
	mu        sync.Mutex
	completed int
	credited  int
	failed    int
}

func (r *fakeNotificationRepo) Create(n *models.Notification) error { return nil }
func (r *fakeNotificationRepo) FindByUser(userID string, page, pageSize int) ([]models.Notification, int64, error) {
	return nil, 0, nil
}
func (r *fakeNotificationRepo) MarkAsRead(id, userID string) error     { return nil }
func (r *fakeNotificationRepo) GetUnreadCount(string) (int64, error)   { return 0, nil }
func (r *fakeNotificationRepo) CreatePaymentCompletedNotification(userID, txRef, tier string, amount int64, currency string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	return nil
}
func (r *fakeNotificationRepo) CreateWalletCreditedNotification(userID, txRef string, net int64, currency string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credited++
	return nil
}
func (r *fakeNotificationRepo) CreatePaymentFailedNotification(userID, txRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	return nil
}

type fakeUserRepo struct {
	users map[string]*models.User
}

func (r *fakeUserRepo) Create(u *models.User) error { return nil }
func (r *fakeUserRepo) FindByID(id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}
func (r *fakeUserRepo) FindByEmail(email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}
func (r *fakeUserRepo) FindProfileByUserID(userID string) (*models.Profile, error) {
	return nil, repositories.ErrProfileNotFound
}
func (r *fakeUserRepo) CreateProfile(p *models.Profile) error { return nil }

type fakeGateway struct {
	mu          sync.Mutex
	verify      *paychangu.VerifyResult
	verifyErr   error
	verifyCalls int
	session     *paychangu.CheckoutSession
	checkoutErr error
	lastReq     paychangu.CheckoutRequest
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, req paychangu.CheckoutRequest) (*paychangu.CheckoutSession, error) {
	g.mu.Lock()
	g.lastReq = req
	g.mu.Unlock()
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	if g.session != nil {
		return g.session, nil
	}
	return &paychangu.CheckoutSession{CheckoutURL: "https://checkout.test/" + req.TxRef}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, txRef string) (*paychangu.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verify, nil
}

// --- сборка сервиса под тест ---

type settlementFixture struct {
	payments *fakePaymentRepo
	wallets  *fakeWalletRepo
	subs     *fakeSubscriptionRepo
	notifs   *fakeNotificationRepo
	gateway  *fakeGateway
	svc      SettlementService
}

func newSettlementFixture(gateway *fakeGateway, records ...*models.PaymentRecord) *settlementFixture {
	f := &settlementFixture{
		payments: newFakePaymentRepo(records...),
		wallets:  newFakeWalletRepo(),
		subs:     &fakeSubscriptionRepo{},
		notifs:   &fakeNotificationRepo{},
		gateway:  gateway,
	}
	users := &fakeUserRepo{users: map[string]*models.User{
		"user-1": {BaseModel: models.BaseModel{ID: "user-1"}, Email: "thandi@example.mw"},
	}}
	f.svc = NewSettlementService(f.payments, f.wallets, f.subs, f.notifs, users, gateway, nil)
	return f
}

func pendingPayment(txRef, tier string, amount int64) *models.PaymentRecord {
	return &models.PaymentRecord{
		TxRef:    txRef,
		UserID:   "user-1",
		Amount:   amount,
		Currency: "MWK",
		Tier:     tier,
		Status:   models.PaymentStatusPending,
	}
}

// --- тесты ---

func TestSettleCompletesSubscriptionPayment(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "success", Amount: 15000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-1", models.TierPremium, 15000))

	result, err := f.svc.Settle(context.Background(), "tx-1", SourceWebhook)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, result.Status)
	assert.False(t, result.Already)
	assert.Equal(t, []string{models.TierPremium}, f.subs.activations)
	assert.Equal(t, 1, f.notifs.completed)

	stored, _ := f.payments.FindByTxRef("tx-1")
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
	assert.Contains(t, string(stored.Metadata), `"settled_by":"webhook"`)
}

func TestSettleAlreadyCompletedSkipsProvider(t *testing.T) {
	record := pendingPayment("tx-1", models.TierPremium, 15000)
	record.Status = models.PaymentStatusCompleted

	gateway := &fakeGateway{verify: &paychangu.VerifyResult{ProviderStatus: "success"}}
	f := newSettlementFixture(gateway, record)

	result, err := f.svc.Settle(context.Background(), "tx-1", SourcePoll)
	require.NoError(t, err)

	assert.True(t, result.Already)
	assert.Equal(t, models.PaymentStatusCompleted, result.Status)
	assert.Equal(t, 0, gateway.verifyCalls, "terminal payment must not hit the provider")
	assert.Empty(t, f.subs.activations)
}

func TestSettleTopupCreditsWalletExactlyOnce(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "successful", Amount: 5000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-topup", models.TierTopup, 5000))

	first, err := f.svc.Settle(context.Background(), "tx-topup", SourceWebhook)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, first.Status)

	// дубль вебхука: статус уже терминальный, кошелек не трогаем
	second, err := f.svc.Settle(context.Background(), "tx-topup", SourceWebhook)
	require.NoError(t, err)
	assert.True(t, second.Already)

	balance, _ := f.wallets.GetBalance("user-1")
	assert.Equal(t, int64(5000), balance)
	assert.Equal(t, 1, f.notifs.credited)
}

func TestSettleAmountMismatchForcesFailed(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "success", Amount: 1000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-bad", models.TierTopup, 5000))

	result, err := f.svc.Settle(context.Background(), "tx-bad", SourceWebhook)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, result.Status)
	balance, _ := f.wallets.GetBalance("user-1")
	assert.Zero(t, balance, "mismatched payment must not credit the wallet")
	assert.Equal(t, 1, f.notifs.failed)

	stored, _ := f.payments.FindByTxRef("tx-bad")
	assert.Contains(t, string(stored.Metadata), "amount_mismatch")
}

func TestSettleOneUnitToleranceStillCompletes(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "success", Amount: 14999, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-1", models.TierPremium, 15000))

	result, err := f.svc.Settle(context.Background(), "tx-1", SourcePoll)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, result.Status)
}

func TestSettleCurrencyMismatchForcesFailed(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "success", Amount: 15000, Currency: "USD",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-1", models.TierPremium, 15000))

	result, err := f.svc.Settle(context.Background(), "tx-1", SourcePoll)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, result.Status)
	assert.Empty(t, f.subs.activations)
}

func TestSettleProviderPendingLeavesRecordPending(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "processing", Amount: 15000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-1", models.TierPremium, 15000))

	result, err := f.svc.Settle(context.Background(), "tx-1", SourcePoll)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, result.Status)
	assert.Equal(t, "processing", result.ProviderStatus)

	stored, _ := f.payments.FindByTxRef("tx-1")
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
}

func TestSettleProviderFailedStatus(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "cancelled", Amount: 15000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-1", models.TierPremium, 15000))

	result, err := f.svc.Settle(context.Background(), "tx-1", SourceReconciler)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, result.Status)
	assert.Empty(t, f.subs.activations)
	assert.Equal(t, 1, f.notifs.failed)
}

func TestSettleRepeatedFailedVerifyNotifiesOnce(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "cancelled", Amount: 15000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-1", models.TierPremium, 15000))

	_, err := f.svc.Settle(context.Background(), "tx-1", SourcePoll)
	require.NoError(t, err)
	require.Equal(t, 1, f.notifs.failed)

	// повторный poll уже проваленного платежа
	result, err := f.svc.Settle(context.Background(), "tx-1", SourcePoll)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, result.Status)
	assert.Equal(t, 1, f.notifs.failed, "re-poll must not duplicate the failure notification")
}

func TestSettleUnknownTxRef(t *testing.T) {
	gateway := &fakeGateway{}
	f := newSettlementFixture(gateway)

	_, err := f.svc.Settle(context.Background(), "tx-ghost", SourceWebhook)
	assert.True(t, apperrors.Is(err, apperrors.ErrPaymentNotFound))
	assert.Equal(t, 0, gateway.verifyCalls)
}

func TestSettleGatewayErrorPropagates(t *testing.T) {
	gateway := &fakeGateway{verifyErr: apperrors.ErrGateway(assert.AnError)}
	f := newSettlementFixture(gateway, pendingPayment("tx-1", models.TierPremium, 15000))

	_, err := f.svc.Settle(context.Background(), "tx-1", SourcePoll)
	require.Error(t, err)

	stored, _ := f.payments.FindByTxRef("tx-1")
	assert.Equal(t, models.PaymentStatusPending, stored.Status, "gateway failure must not settle anything")
}

func TestSettleConcurrentAttemptsCreditOnce(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "success", Amount: 5000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-race", models.TierTopup, 5000))

	const attempts = 16
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			f.svc.Settle(context.Background(), "tx-race", SourceWebhook)
		}()
	}
	wg.Wait()

	balance, _ := f.wallets.GetBalance("user-1")
	assert.Equal(t, int64(5000), balance, "parallel settlements must credit the wallet once")
}

func TestSettleDonationGrantsNothing(t *testing.T) {
	gateway := &fakeGateway{verify: &paychangu.VerifyResult{
		ProviderStatus: "paid", Amount: 2000, Currency: "MWK",
	}}
	f := newSettlementFixture(gateway, pendingPayment("tx-don", models.TierDonation, 2000))

	result, err := f.svc.Settle(context.Background(), "tx-don", SourceWebhook)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, result.Status)
	balance, _ := f.wallets.GetBalance("user-1")
	assert.Zero(t, balance)
	assert.Empty(t, f.subs.activations)
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     models.PaymentStatus
		settled  bool
	}{
		{"success", models.PaymentStatusCompleted, true},
		{"SUCCESS", models.PaymentStatusCompleted, true},
		{"successful", models.PaymentStatusCompleted, true},
		{"paid", models.PaymentStatusCompleted, true},
		{"failed", models.PaymentStatusFailed, true},
		{"cancelled", models.PaymentStatusFailed, true},
		{"reversed", models.PaymentStatusFailed, true},
		{"processing", models.PaymentStatusPending, false},
		{"", models.PaymentStatusPending, false},
		{"weird-new-status", models.PaymentStatusPending, false},
	}

	for _, tc := range cases {
		got, settled := mapProviderStatus(tc.provider)
		assert.Equal(t, tc.want, got, "provider status %q", tc.provider)
		assert.Equal(t, tc.settled, settled, "provider status %q", tc.provider)
	}
}
