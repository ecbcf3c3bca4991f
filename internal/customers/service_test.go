package customers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/jadorel/afrimarket-backend/pkg/auth"
	"github.com/jadorel/afrimarket-backend/pkg/config"
	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
)

type stubCustomerRepo struct {
	customers map[uuid.UUID]*models.Customer
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{customers: map[uuid.UUID]*models.Customer{}}
}

func (s *stubCustomerRepo) Create(_ context.Context, customer *models.Customer) (*models.Customer, error) {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = customer.CreatedAt
	s.customers[customer.ID] = customer
	return customer, nil
}

func (s *stubCustomerRepo) FindByEmail(_ context.Context, email string) (*models.Customer, error) {
	for _, customer := range s.customers {
		if customer.Email == email {
			return customer, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, ok := s.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return customer, nil
}

func (s *stubCustomerRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.customers[id].LastLoginAt = &at
	return nil
}

func (s *stubCustomerRepo) UpdateProfile(_ context.Context, id uuid.UUID, updates map[string]any) error {
	customer := s.customers[id]
	if name, ok := updates["first_name"].(string); ok {
		customer.FirstName = name
	}
	if name, ok := updates["last_name"].(string); ok {
		customer.LastName = name
	}
	if phone, ok := updates["phone"].(*string); ok {
		customer.Phone = phone
	}
	return nil
}

type stubSessionManager struct {
	generated []string
	revoked   []string
	rotateErr error
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	if provided != "refresh-"+oldAccessID {
		return "", "", pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token mismatch")
	}
	newAccessID := uuid.NewString()
	return newAccessID, "refresh-" + newAccessID, nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "afrimarket-test",
		ExpirationMinutes: 60,
		RefreshTokenDays:  30,
	}
}

func newAccountsService(t *testing.T, repo *stubCustomerRepo, sessions *stubSessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:           repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterIssuesTokensAndHashesPassword(t *testing.T) {
	repo := newStubCustomerRepo()
	sessions := &stubSessionManager{}
	svc := newAccountsService(t, repo, sessions)

	response, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "  Ayo@Example.com ",
		Password:  "correct-horse",
		FirstName: "Ayo",
		LastName:  "Dossou",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if response.Customer.Email != "ayo@example.com" {
		t.Fatalf("email = %q, want normalized lowercase", response.Customer.Email)
	}
	if response.AccessToken == "" || response.RefreshToken == "" {
		t.Fatal("register should issue a token pair")
	}

	stored := repo.customers[response.Customer.ID]
	if stored.PasswordHash == "correct-horse" || stored.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), response.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.CustomerID != response.Customer.ID {
		t.Fatalf("claims customer id = %s", claims.CustomerID)
	}
	if claims.Role != enums.RoleCustomer {
		t.Fatalf("claims role = %s", claims.Role)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	repo := newStubCustomerRepo()
	svc := newAccountsService(t, repo, &stubSessionManager{})

	request := RegisterRequest{
		Email:     "ayo@example.com",
		Password:  "correct-horse",
		FirstName: "Ayo",
		LastName:  "Dossou",
	}
	if _, err := svc.Register(context.Background(), request); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := svc.Register(context.Background(), request)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newAccountsService(t, newStubCustomerRepo(), &stubSessionManager{})

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "ayo@example.com",
		Password:  "short",
		FirstName: "Ayo",
		LastName:  "Dossou",
	})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginVerifiesPasswordAndRecordsLogin(t *testing.T) {
	repo := newStubCustomerRepo()
	sessions := &stubSessionManager{}
	svc := newAccountsService(t, repo, sessions)

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "ayo@example.com",
		Password:  "correct-horse",
		FirstName: "Ayo",
		LastName:  "Dossou",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	response, err := svc.Login(context.Background(), LoginRequest{
		Email:    "AYO@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if response.Customer.ID != registered.Customer.ID {
		t.Fatal("login resolved a different account")
	}
	if response.Customer.LastLoginAt == nil {
		t.Fatal("last login not recorded")
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "ayo@example.com",
		Password: "wrong-password",
	})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestLoginUnknownEmailIsUnauthorized(t *testing.T) {
	svc := newAccountsService(t, newStubCustomerRepo(), &stubSessionManager{})

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	repo := newStubCustomerRepo()
	sessions := &stubSessionManager{}
	svc := newAccountsService(t, repo, sessions)

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "ayo@example.com",
		Password:  "correct-horse",
		FirstName: "Ayo",
		LastName:  "Dossou",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  registered.AccessToken,
		RefreshToken: registered.RefreshToken,
	})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.AccessToken == registered.AccessToken {
		t.Fatal("access token not rotated")
	}
	if rotated.RefreshToken == registered.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), rotated.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.CustomerID != registered.Customer.ID {
		t.Fatal("rotated token lost the customer identity")
	}
}

func TestRefreshRejectsMismatchedToken(t *testing.T) {
	repo := newStubCustomerRepo()
	sessions := &stubSessionManager{}
	svc := newAccountsService(t, repo, sessions)

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "ayo@example.com",
		Password:  "correct-horse",
		FirstName: "Ayo",
		LastName:  "Dossou",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  registered.AccessToken,
		RefreshToken: "stolen-token",
	})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := &stubSessionManager{}
	svc := newAccountsService(t, newStubCustomerRepo(), sessions)

	if err := svc.Logout(context.Background(), "access-123"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-123" {
		t.Fatalf("revoked = %v", sessions.revoked)
	}
}

func TestUpdateProfileAppliesPartialChanges(t *testing.T) {
	repo := newStubCustomerRepo()
	svc := newAccountsService(t, repo, &stubSessionManager{})

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "ayo@example.com",
		Password:  "correct-horse",
		FirstName: "Ayo",
		LastName:  "Dossou",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	phone := "+22990112233"
	first := "Ayodele"
	updated, err := svc.UpdateProfile(context.Background(), registered.Customer.ID, UpdateProfileRequest{
		FirstName: &first,
		Phone:     &phone,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FirstName != "Ayodele" {
		t.Fatalf("first name = %q", updated.FirstName)
	}
	if updated.LastName != "Dossou" {
		t.Fatalf("last name changed unexpectedly to %q", updated.LastName)
	}
	if updated.Phone == nil || *updated.Phone != phone {
		t.Fatalf("phone = %v", updated.Phone)
	}

	empty := " "
	_, err = svc.UpdateProfile(context.Background(), registered.Customer.ID, UpdateProfileRequest{FirstName: &empty})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
