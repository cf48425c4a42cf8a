package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/mpereira/finledger/internal/common"
	"github.com/mpereira/finledger/internal/dbx"
	"github.com/mpereira/finledger/internal/server/auth"
	"github.com/mpereira/finledger/internal/server/config"
	"github.com/mpereira/finledger/internal/server/models"
	txrepo "github.com/mpereira/finledger/internal/server/repositories/transactions"
	usersrepo "github.com/mpereira/finledger/internal/server/repositories/users"
)

// --- helpers ---

const validID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newUserService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:           "k",
		AccessTokenValidity: time.Hour,
	}
	return NewUserService(db, rm, cfg)
}

type fakeUsersRepo struct {
	createErr   error
	lastCreated *models.User

	byEmailOut *models.User
	byEmailErr error

	byIDOut *models.User
	byIDErr error

	updateErr   error
	lastUpdated *models.User

	deactivateErr error

	searchOut []*models.User
	searchErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = validID
	f.lastCreated = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmailOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byIDOut, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.lastUpdated = u
	return u, nil
}

func (f *fakeUsersRepo) Deactivate(ctx context.Context, id string) error {
	return f.deactivateErr
}

func (f *fakeUsersRepo) SearchByName(ctx context.Context, pattern string) ([]*models.User, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchOut, nil
}

type fakeTxRepo struct {
	createErr   error
	lastCreated *models.Transaction

	updateErr   error
	lastUpdated *models.Transaction

	deleteErr error

	getOut *models.Transaction
	getErr error

	getOwnerOut *models.Transaction
	getOwnerErr error

	listByOwner map[string][]*models.Transaction
	listErr     error

	listBetweenOut      []*models.Transaction
	listBetweenFrom, to time.Time

	listDayOut []*models.Transaction
	listDayDay int

	sumIncome, sumExpense decimal.Decimal
	sumErr                error
	sumFrom, sumTo        time.Time

	recurringOut []*models.Transaction
	recurringErr error

	materializedInserted bool
	materializedErr      error
	clones               []*models.Transaction
}

func (f *fakeTxRepo) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	tx.ID = validID
	f.lastCreated = tx
	return tx, nil
}

func (f *fakeTxRepo) Update(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.lastUpdated = tx
	return tx, nil
}

func (f *fakeTxRepo) Delete(ctx context.Context, id, ownerID string) error {
	return f.deleteErr
}

func (f *fakeTxRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeTxRepo) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Transaction, error) {
	if f.getOwnerErr != nil {
		return nil, f.getOwnerErr
	}
	return f.getOwnerOut, nil
}

func (f *fakeTxRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listByOwner[ownerID], nil
}

func (f *fakeTxRepo) ListByOwnerBetween(ctx context.Context, ownerID string, from, to time.Time) ([]*models.Transaction, error) {
	f.listBetweenFrom, f.to = from, to
	return f.listBetweenOut, nil
}

func (f *fakeTxRepo) ListByOwnerDay(ctx context.Context, ownerID string, day int, from, to time.Time) ([]*models.Transaction, error) {
	f.listDayDay = day
	return f.listDayOut, nil
}

func (f *fakeTxRepo) SumByOwner(ctx context.Context, ownerID string) (decimal.Decimal, decimal.Decimal, error) {
	if f.sumErr != nil {
		return decimal.Zero, decimal.Zero, f.sumErr
	}
	return f.sumIncome, f.sumExpense, nil
}

func (f *fakeTxRepo) SumByOwnerBetween(ctx context.Context, ownerID string, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	f.sumFrom, f.sumTo = from, to
	if f.sumErr != nil {
		return decimal.Zero, decimal.Zero, f.sumErr
	}
	return f.sumIncome, f.sumExpense, nil
}

func (f *fakeTxRepo) ListRecurringByDay(ctx context.Context, day int) ([]*models.Transaction, error) {
	if f.recurringErr != nil {
		return nil, f.recurringErr
	}
	return f.recurringOut, nil
}

func (f *fakeTxRepo) CreateMaterialized(ctx context.Context, tx *models.Transaction) (bool, error) {
	if f.materializedErr != nil {
		return false, f.materializedErr
	}
	f.clones = append(f.clones, tx)
	return f.materializedInserted, nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	tx *fakeTxRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) Transactions(db dbx.DBTX) txrepo.Repository  { return m.tx }

// --- UserService ---

func TestRegister_NormalizesAndHashes(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}}
	s := newUserService(t, db, rm)

	u, err := s.Register(context.Background(), "  Alice  ", "  Alice@Example.COM ", "hunter2")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.Email != "alice@example.com" || u.Name != "Alice" {
		t.Fatalf("normalization failed: %+v", u)
	}
	if u.Role != models.RoleUser || !u.Active {
		t.Fatalf("unexpected defaults: %+v", u)
	}
	if !auth.CheckPassword(rm.u.lastCreated.PasswordHash, "hunter2") {
		t.Fatalf("password not hashed correctly")
	}
}

func TestRegister_MissingFields(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{}})

	cases := []struct{ name, email, password string }{
		{"", "a@x.com", "pw"},
		{"alice", "", "pw"},
		{"alice", "a@x.com", ""},
	}
	for _, c := range cases {
		if _, err := s.Register(context.Background(), c.name, c.email, c.password); !errors.Is(err, common.ErrValidation) {
			t.Fatalf("want ErrValidation for %+v, got %v", c, err)
		}
	}
}

func TestCreate_AdminPicksRole(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}}
	s := newUserService(t, db, rm)

	u, err := s.Create(context.Background(), "bob", "bob@example.com", "pw", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.Role != models.RoleAdmin {
		t.Fatalf("role not applied: %+v", u)
	}

	if _, err := s.Create(context.Background(), "bob", "b2@example.com", "pw", "root"); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation for unknown role, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{createErr: common.ErrConflict}}
	s := newUserService(t, db, rm)

	if _, err := s.Register(context.Background(), "alice", "a@x.com", "pw"); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestRegister_RepoError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{createErr: errBoom{}}}
	s := newUserService(t, db, rm)

	_, err := s.Register(context.Background(), "alice", "a@x.com", "pw")
	if err == nil || !regexp.MustCompile(`error creating user: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestLogin_Flows(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	hash, err := auth.HashPassword("right")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	account := &models.User{ID: validID, Name: "alice", Email: "alice@example.com", PasswordHash: hash, Role: models.RoleAdmin, Active: true}

	// not found → unauthorized
	sNF := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{byEmailErr: common.ErrNotFound}})
	if _, _, err := sNF.Login(context.Background(), "ghost@example.com", "x"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("notfound → unauthorized, got %v", err)
	}

	// repo failure → internal
	sIE := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{byEmailErr: errBoom{}}})
	if _, _, err := sIE.Login(context.Background(), "a@x.com", "x"); !errors.Is(err, common.ErrInternal) {
		t.Fatalf("internal → ErrInternal, got %v", err)
	}

	// wrong password → unauthorized
	sWP := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{byEmailOut: account}})
	if _, _, err := sWP.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("wrong password → unauthorized, got %v", err)
	}

	// success mints a verifiable token
	sOK := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{byEmailOut: account}})
	token, user, err := sOK.Login(context.Background(), "Alice@Example.com", "right")
	if err != nil || token == "" || user.ID != validID {
		t.Fatalf("Login success: token=%q user=%+v err=%v", token, user, err)
	}
	identity, err := auth.ParseToken(token, []byte("k"))
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if identity.UserID != validID || identity.Role != models.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestGetByID_InvalidID(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{}})
	if _, err := s.GetByID(context.Background(), "not-a-uuid"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPatch_MergesInsideTx(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	existing := &models.User{ID: validID, Name: "alice", Email: "alice@example.com", PasswordHash: "old", Role: models.RoleUser, Active: true}
	rm := &fakeRepoManager{u: &fakeUsersRepo{byIDOut: existing}}
	s := newUserService(t, db, rm)

	newName := "Alice Cooper"
	newPassword := "swordfish"
	u, err := s.Patch(context.Background(), validID, UserPatch{Name: &newName, Password: &newPassword})
	if err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if u.Name != "Alice Cooper" || u.Email != "alice@example.com" {
		t.Fatalf("unexpected merge: %+v", u)
	}
	if !auth.CheckPassword(rm.u.lastUpdated.PasswordHash, "swordfish") {
		t.Fatalf("password not rehashed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPatch_InvalidRoleRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	existing := &models.User{ID: validID, Name: "alice", Email: "alice@example.com", Role: models.RoleUser}
	s := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{byIDOut: existing}})

	role := models.Role("superuser")
	if _, err := s.Patch(context.Background(), validID, UserPatch{Role: &role}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPatch_NotFoundPassthrough(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	s := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{byIDErr: common.ErrNotFound}})

	name := "x"
	if _, err := s.Patch(context.Background(), validID, UserPatch{Name: &name}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeactivate_InvalidID(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newUserService(t, db, &fakeRepoManager{u: &fakeUsersRepo{}})
	if err := s.Deactivate(context.Background(), "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
