package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agrisafe/claims-service/internal/domain"
	"github.com/agrisafe/claims-service/internal/store"
)

type claimRepoStub struct {
	store.Repository

	mu sync.Mutex

	recommendation *domain.Recommendation
	items          []domain.RecommendationItem
	farmer         *domain.Farmer

	findRecommendationErr error
	findItemsErr          error
	findFarmerErr         error
	claimErr              error

	claimCalls       int
	itemDatesWritten map[int64]domain.ItemSchedule
	claimedByShopID  int64
}

func (s *claimRepoStub) FindRecommendationByID(ctx context.Context, recommendationID int64) (*domain.Recommendation, error) {
	if s.findRecommendationErr != nil {
		return nil, s.findRecommendationErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *s.recommendation
	return &rec, nil
}

func (s *claimRepoStub) FindItemsByRecommendationID(ctx context.Context, recommendationID int64) ([]domain.RecommendationItem, error) {
	if s.findItemsErr != nil {
		return nil, s.findItemsErr
	}
	return s.items, nil
}

func (s *claimRepoStub) FindFarmerByID(ctx context.Context, farmerID int64) (*domain.Farmer, error) {
	if s.findFarmerErr != nil {
		return nil, s.findFarmerErr
	}
	if s.farmer == nil {
		return nil, store.ErrFarmerNotFound
	}
	return s.farmer, nil
}

// ClaimRecommendationWithSchedule mirrors the conditional-update contract of
// the real repository: exactly one caller observes claimed=true, everyone else
// gets claimed=false with no error and no item writes.
func (s *claimRepoStub) ClaimRecommendationWithSchedule(ctx context.Context, recommendationID, shopID int64, notes string, schedule *domain.TreatmentSchedule) (time.Time, bool, error) {
	if s.claimErr != nil {
		return time.Time{}, false, s.claimErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimCalls++

	if s.recommendation.IsClaimed {
		return time.Time{}, false, nil
	}

	now := time.Now().UTC()
	s.recommendation.IsClaimed = true
	s.recommendation.ClaimedByShopID = &shopID
	s.recommendation.ClaimedAt = &now
	s.claimedByShopID = shopID

	if s.itemDatesWritten == nil {
		s.itemDatesWritten = make(map[int64]domain.ItemSchedule)
	}
	for _, item := range schedule.Items {
		s.itemDatesWritten[item.ItemID] = item
	}

	return now, true, nil
}

type notifierStub struct {
	mu        sync.Mutex
	calls     int
	delivered bool
	detail    string

	lastMobile string
	lastStart  time.Time
	lastEnd    time.Time
}

func (n *notifierStub) Send(ctx context.Context, farmerMobile, farmerName string, items []domain.RecommendationItem, startDate, endDate time.Time) (bool, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.lastMobile = farmerMobile
	n.lastStart = startDate
	n.lastEnd = endDate
	return n.delivered, n.detail
}

func newClaimRepoStub() *claimRepoStub {
	return &claimRepoStub{
		recommendation: &domain.Recommendation{ID: 42, FarmerID: 7, DoctorID: 3},
		items: []domain.RecommendationItem{
			{ID: 101, RecommendationID: 42, AntibioticName: "Oxytetracycline", SingleDoseMl: 5, DailyFrequency: 2, TreatmentDays: 5},
			{ID: 102, RecommendationID: 42, AntibioticName: "Enrofloxacin", SingleDoseMl: 3, DailyFrequency: 1, TreatmentDays: 7},
		},
		farmer: &domain.Farmer{ID: 7, Name: "Ravi", MobileNo: "919876543210"},
	}
}

func TestClaimRecommendation_Success(t *testing.T) {
	repo := newClaimRepoStub()
	notifier := &notifierStub{delivered: true, detail: "WhatsApp message sent successfully (attempt 1)"}
	svc := NewService(repo, notifier, nil, "agrisafe.events")

	result, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: "2024-03-10", Notes: "pickup at counter"})
	if err != nil {
		t.Fatalf("ClaimRecommendation returned error: %v", err)
	}

	if result.ShopID != 9 || result.RecommendationID != 42 {
		t.Fatalf("unexpected claim identity: %+v", result)
	}
	if result.MaxTreatmentDays != 7 {
		t.Fatalf("expected max treatment days 7, got %d", result.MaxTreatmentDays)
	}
	if got := result.EndDate.Format(domain.DateLayout); got != "2024-03-16" {
		t.Fatalf("expected end date 2024-03-16, got %s", got)
	}
	if !result.WhatsappSent {
		t.Fatalf("expected whatsapp sent, got detail %q", result.WhatsappMessage)
	}

	// Both item windows must have been persisted through the schedule.
	if len(repo.itemDatesWritten) != 2 {
		t.Fatalf("expected 2 item date writes, got %d", len(repo.itemDatesWritten))
	}
	first := repo.itemDatesWritten[101]
	if got := first.EndDate.Format(domain.DateLayout); got != "2024-03-14" {
		t.Fatalf("expected item 101 end date 2024-03-14, got %s", got)
	}
	if notifier.calls != 1 || notifier.lastMobile != "919876543210" {
		t.Fatalf("unexpected notifier state: calls=%d mobile=%q", notifier.calls, notifier.lastMobile)
	}
}

func TestClaimRecommendation_InvalidStartDate(t *testing.T) {
	repo := newClaimRepoStub()
	svc := NewService(repo, &notifierStub{}, nil, "agrisafe.events")

	for _, raw := range []string{"", "10-03-2024", "2024-13-40", "tomorrow"} {
		_, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: raw})
		if !errors.Is(err, ErrInvalidStartDate) {
			t.Fatalf("start date %q: expected ErrInvalidStartDate, got %v", raw, err)
		}
	}
	if repo.claimCalls != 0 {
		t.Fatalf("expected no claim attempts, got %d", repo.claimCalls)
	}
}

func TestClaimRecommendation_AlreadyClaimedPreCheck(t *testing.T) {
	repo := newClaimRepoStub()
	repo.recommendation.IsClaimed = true
	notifier := &notifierStub{delivered: true}
	svc := NewService(repo, notifier, nil, "agrisafe.events")

	_, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: "2024-03-10"})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if repo.claimCalls != 0 {
		t.Fatalf("expected no conditional update attempt, got %d", repo.claimCalls)
	}
	if notifier.calls != 0 {
		t.Fatal("loser must not trigger a notification")
	}
	if len(repo.itemDatesWritten) != 0 {
		t.Fatal("loser must not mutate item dates")
	}
}

func TestClaimRecommendation_NotFound(t *testing.T) {
	repo := newClaimRepoStub()
	repo.findRecommendationErr = store.ErrRecommendationNotFound
	svc := NewService(repo, &notifierStub{}, nil, "agrisafe.events")

	_, err := svc.ClaimRecommendation(context.Background(), 999, 9, domain.ClaimRequest{StartDate: "2024-03-10"})
	if !errors.Is(err, store.ErrRecommendationNotFound) {
		t.Fatalf("expected ErrRecommendationNotFound, got %v", err)
	}
}

func TestClaimRecommendation_NoItems(t *testing.T) {
	repo := newClaimRepoStub()
	repo.items = nil
	svc := NewService(repo, &notifierStub{}, nil, "agrisafe.events")

	_, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: "2024-03-10"})
	if !errors.Is(err, ErrNoRecommendationItems) {
		t.Fatalf("expected ErrNoRecommendationItems, got %v", err)
	}
	if repo.claimCalls != 0 {
		t.Fatalf("expected no claim attempts, got %d", repo.claimCalls)
	}
}

func TestClaimRecommendation_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	repo := newClaimRepoStub()
	notifier := &notifierStub{delivered: true}
	svc := NewService(repo, notifier, nil, "agrisafe.events")

	const shops = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	losers := 0

	wg.Add(shops)
	for i := 0; i < shops; i++ {
		shopID := int64(i + 1)
		go func() {
			defer wg.Done()
			result, err := svc.ClaimRecommendation(context.Background(), 42, shopID, domain.ClaimRequest{StartDate: "2024-03-10"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
				if result.ShopID != shopID {
					t.Errorf("winner result reports shop %d, claimed as %d", result.ShopID, shopID)
				}
			case errors.Is(err, ErrAlreadyClaimed):
				losers++
			default:
				t.Errorf("unexpected error for shop %d: %v", shopID, err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d (losers=%d)", winners, losers)
	}
	if winners+losers != shops {
		t.Fatalf("expected %d total outcomes, got %d", shops, winners+losers)
	}
	if repo.recommendation.ClaimedByShopID == nil || *repo.recommendation.ClaimedByShopID != repo.claimedByShopID {
		t.Fatal("claimed shop id not recorded consistently")
	}
	if notifier.calls != 1 {
		t.Fatalf("expected exactly one notification, got %d", notifier.calls)
	}
}

func TestClaimRecommendation_ClaimSurvivesNotificationFailure(t *testing.T) {
	cases := []struct {
		name   string
		detail string
	}{
		{"disabled", "WhatsApp messaging is disabled in configuration"},
		{"timeout", "WhatsApp API timeout after 3 attempts"},
		{"server error", "Failed to send WhatsApp message: HTTP 500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newClaimRepoStub()
			notifier := &notifierStub{delivered: false, detail: tc.detail}
			svc := NewService(repo, notifier, nil, "agrisafe.events")

			result, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: "2024-03-10"})
			if err != nil {
				t.Fatalf("claim must not fail on notification problems: %v", err)
			}
			if result.WhatsappSent {
				t.Fatal("expected whatsapp_sent=false")
			}
			if result.WhatsappMessage != tc.detail {
				t.Fatalf("expected detail %q, got %q", tc.detail, result.WhatsappMessage)
			}
			if !repo.recommendation.IsClaimed {
				t.Fatal("claim must remain committed")
			}
		})
	}
}

func TestClaimRecommendation_MissingFarmerMobile(t *testing.T) {
	repo := newClaimRepoStub()
	repo.farmer.MobileNo = ""
	notifier := &notifierStub{delivered: true}
	svc := NewService(repo, notifier, nil, "agrisafe.events")

	result, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: "2024-03-10"})
	if err != nil {
		t.Fatalf("ClaimRecommendation returned error: %v", err)
	}
	if result.WhatsappSent {
		t.Fatal("expected whatsapp_sent=false without a farmer mobile")
	}
	if result.WhatsappMessage != "Farmer mobile number not available" {
		t.Fatalf("unexpected detail %q", result.WhatsappMessage)
	}
	if notifier.calls != 0 {
		t.Fatal("dispatcher must not be invoked without a mobile number")
	}
}

type fixedRateLimiter struct {
	count int
	err   error
}

func (f *fixedRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return f.count, 30, f.err
}

func TestClaimRecommendation_RateLimited(t *testing.T) {
	repo := newClaimRepoStub()
	svc := NewService(repo, &notifierStub{delivered: true}, nil, "agrisafe.events")
	svc.SetClaimRateLimiter(&fixedRateLimiter{count: 31}, 30)

	_, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: "2024-03-10"})
	if !errors.Is(err, ErrClaimRateLimited) {
		t.Fatalf("expected ErrClaimRateLimited, got %v", err)
	}
	if repo.claimCalls != 0 {
		t.Fatal("rate-limited request must not reach the repository")
	}
}

func TestClaimRecommendation_RateLimiterOutageAllowsRequest(t *testing.T) {
	repo := newClaimRepoStub()
	svc := NewService(repo, &notifierStub{delivered: true}, nil, "agrisafe.events")
	svc.SetClaimRateLimiter(&fixedRateLimiter{err: errors.New("redis down")}, 30)

	_, err := svc.ClaimRecommendation(context.Background(), 42, 9, domain.ClaimRequest{StartDate: "2024-03-10"})
	if err != nil {
		t.Fatalf("limiter outage must fail open, got %v", err)
	}
}
