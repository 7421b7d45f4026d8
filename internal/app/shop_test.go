package app

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/agrisafe/claims-service/internal/domain"
	"github.com/agrisafe/claims-service/internal/store"
)

type shopRepoStub struct {
	store.Repository

	shopsByMobile map[string]*domain.Shop
	shopsByID     map[int64]*domain.Shop
	nextID        int64

	createdShop   *domain.Shop
	updateApplied *domain.ShopProfileUpdate
	updateResult  bool
}

func (s *shopRepoStub) FindShopByMobile(ctx context.Context, mobileNo string) (*domain.Shop, error) {
	if shop, ok := s.shopsByMobile[mobileNo]; ok {
		copied := *shop
		return &copied, nil
	}
	return nil, store.ErrShopNotFound
}

func (s *shopRepoStub) FindShopByID(ctx context.Context, shopID int64) (*domain.Shop, error) {
	if shop, ok := s.shopsByID[shopID]; ok {
		copied := *shop
		return &copied, nil
	}
	return nil, store.ErrShopNotFound
}

func (s *shopRepoStub) CreateShop(ctx context.Context, shop *domain.Shop) (int64, error) {
	if _, ok := s.shopsByMobile[shop.MobileNo]; ok {
		return 0, store.ErrMobileAlreadyRegistered
	}
	s.nextID++
	s.createdShop = shop
	return s.nextID, nil
}

func (s *shopRepoStub) UpdateShopProfile(ctx context.Context, shopID int64, update domain.ShopProfileUpdate) (bool, error) {
	s.updateApplied = &update
	return s.updateResult, nil
}

func validSignup() domain.ShopSignupRequest {
	return domain.ShopSignupRequest{
		ShopName:      "Krishna Agro Medicals",
		OwnerName:     "S. Krishnan",
		MobileNo:      "919812345678",
		Password:      "s3cret-pass",
		LicenseNumber: "TN-20B-1234",
		Pincode:       "641001",
		Address:       "12 Market Road",
		City:          "Coimbatore",
		State:         "Tamil Nadu",
	}
}

func TestRegisterShop_HashesPassword(t *testing.T) {
	repo := &shopRepoStub{shopsByMobile: map[string]*domain.Shop{}}
	svc := NewService(repo, nil, nil, "agrisafe.events")

	id, err := svc.RegisterShop(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("RegisterShop returned error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected shop id 1, got %d", id)
	}
	if repo.createdShop.PasswordHash == "s3cret-pass" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.createdShop.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if !repo.createdShop.IsActive || repo.createdShop.IsVerified {
		t.Fatalf("new shop should be active and unverified: %+v", repo.createdShop)
	}
}

func TestRegisterShop_Validation(t *testing.T) {
	repo := &shopRepoStub{shopsByMobile: map[string]*domain.Shop{}}
	svc := NewService(repo, nil, nil, "agrisafe.events")

	missing := validSignup()
	missing.LicenseNumber = ""
	if _, err := svc.RegisterShop(context.Background(), missing); !errors.Is(err, ErrMissingSignupField) {
		t.Fatalf("expected ErrMissingSignupField, got %v", err)
	}

	badMobile := validSignup()
	badMobile.MobileNo = "0123-not-a-number"
	if _, err := svc.RegisterShop(context.Background(), badMobile); !errors.Is(err, ErrInvalidMobileNumber) {
		t.Fatalf("expected ErrInvalidMobileNumber, got %v", err)
	}

	weak := validSignup()
	weak.Password = "abc"
	if _, err := svc.RegisterShop(context.Background(), weak); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterShop_DuplicateMobile(t *testing.T) {
	repo := &shopRepoStub{shopsByMobile: map[string]*domain.Shop{
		"919812345678": {ID: 1, MobileNo: "919812345678"},
	}}
	svc := NewService(repo, nil, nil, "agrisafe.events")

	if _, err := svc.RegisterShop(context.Background(), validSignup()); !errors.Is(err, store.ErrMobileAlreadyRegistered) {
		t.Fatalf("expected ErrMobileAlreadyRegistered, got %v", err)
	}
}

func TestAuthenticateShop(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	active := &domain.Shop{ID: 5, MobileNo: "919812345678", PasswordHash: string(hash), IsActive: true}
	repo := &shopRepoStub{shopsByMobile: map[string]*domain.Shop{active.MobileNo: active}}
	svc := NewService(repo, nil, nil, "agrisafe.events")

	shop, err := svc.AuthenticateShop(context.Background(), domain.ShopLoginRequest{MobileNo: active.MobileNo, Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("AuthenticateShop returned error: %v", err)
	}
	if shop.ID != 5 {
		t.Fatalf("unexpected shop id %d", shop.ID)
	}

	if _, err := svc.AuthenticateShop(context.Background(), domain.ShopLoginRequest{MobileNo: active.MobileNo, Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.AuthenticateShop(context.Background(), domain.ShopLoginRequest{MobileNo: "910000000000", Password: "s3cret-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown mobile, got %v", err)
	}

	active.IsActive = false
	if _, err := svc.AuthenticateShop(context.Background(), domain.ShopLoginRequest{MobileNo: active.MobileNo, Password: "s3cret-pass"}); !errors.Is(err, ErrShopDeactivated) {
		t.Fatalf("expected ErrShopDeactivated, got %v", err)
	}
}

func TestGetShopProfile_ElidesPasswordHash(t *testing.T) {
	repo := &shopRepoStub{shopsByID: map[int64]*domain.Shop{
		5: {ID: 5, ShopName: "Krishna Agro Medicals", PasswordHash: "bcrypt-hash"},
	}}
	svc := NewService(repo, nil, nil, "agrisafe.events")

	shop, err := svc.GetShopProfile(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetShopProfile returned error: %v", err)
	}
	if shop.PasswordHash != "" {
		t.Fatal("password hash leaked through profile")
	}
}

func TestUpdateShopProfile(t *testing.T) {
	repo := &shopRepoStub{updateResult: true}
	svc := NewService(repo, nil, nil, "agrisafe.events")

	newName := "Krishna Agro Medicals & Feeds"
	if err := svc.UpdateShopProfile(context.Background(), 5, domain.ShopProfileUpdate{ShopName: &newName}); err != nil {
		t.Fatalf("UpdateShopProfile returned error: %v", err)
	}
	if repo.updateApplied == nil || repo.updateApplied.ShopName == nil || *repo.updateApplied.ShopName != newName {
		t.Fatal("update not passed through to repository")
	}

	badMobile := "not-a-mobile"
	if err := svc.UpdateShopProfile(context.Background(), 5, domain.ShopProfileUpdate{MobileNo: &badMobile}); !errors.Is(err, ErrInvalidMobileNumber) {
		t.Fatalf("expected ErrInvalidMobileNumber, got %v", err)
	}

	repo.updateResult = false
	if err := svc.UpdateShopProfile(context.Background(), 99, domain.ShopProfileUpdate{ShopName: &newName}); !errors.Is(err, store.ErrShopNotFound) {
		t.Fatalf("expected ErrShopNotFound, got %v", err)
	}
}
