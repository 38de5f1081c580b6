package ledger

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"fund_ledger/internal/db"
	"fund_ledger/internal/domain"
	"fund_ledger/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice uint = 1
	bob   uint = 2
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

// staleFundsRepo answers FindFundsByUser with a list read earlier, so funds
// deleted since then still appear in it.
type staleFundsRepo struct {
	repository.Repository
	funds []domain.Fund
}

func (r *staleFundsRepo) FindFundsByUser(context.Context, uint) ([]domain.Fund, error) {
	return r.funds, nil
}

func newTestService(t *testing.T) (*Service, *repository.GormRepository, *recordingNotifier) {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	log := logrus.New()
	log.SetOutput(io.Discard)
	repo := repository.New(conn)
	notifier := &recordingNotifier{}
	return NewService(repo, notifier, log), repo, notifier
}

func mustCreateFund(t *testing.T, svc *Service, userID uint, name string, percentage, balance float64) *domain.Fund {
	t.Helper()
	fund, err := svc.CreateFund(context.Background(), userID, CreateFundRequest{Name: name, Percentage: percentage, Balance: balance})
	require.NoError(t, err)
	return fund
}

func requireKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, domain.KindOf(err), "error: %v", err)
}

func TestCreateFund_Defaults(t *testing.T) {
	svc, _, notifier := newTestService(t)
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 0)

	assert.NotZero(t, fund.ID)
	assert.Equal(t, "Open", fund.Size)
	assert.Equal(t, alice, fund.UserID)
	assert.Zero(t, fund.Balance)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, EventFundCreated, notifier.events[0].Type)
}

func TestCreateFund_OverAllocationRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	mustCreateFund(t, svc, alice, "Rent", 40, 0)

	_, err := svc.CreateFund(ctx, alice, CreateFundRequest{Name: "Savings", Percentage: 65})
	requireKind(t, err, domain.KindInvalidPercentage)

	funds, err := repo.FindFundsByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, funds, 1, "rejected fund must not be persisted")
}

func TestCreateFund_ExactlyHundredAllowed(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreateFund(t, svc, alice, "Rent", 40, 0)
	mustCreateFund(t, svc, alice, "Savings", 60, 0)

	_, err := svc.CreateFund(context.Background(), alice, CreateFundRequest{Name: "Fun", Percentage: 0})
	assert.NoError(t, err)
}

func TestCreateFund_AllocationIsPerUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreateFund(t, svc, alice, "Rent", 80, 0)

	_, err := svc.CreateFund(context.Background(), bob, CreateFundRequest{Name: "Bob Rent", Percentage: 80})
	assert.NoError(t, err)
}

func TestCreateFund_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreateFund(t, svc, alice, "Rent", 10, 0)

	tests := []struct {
		name string
		req  CreateFundRequest
		kind domain.Kind
	}{
		{name: "blank name", req: CreateFundRequest{Name: "  ", Percentage: 10}, kind: domain.KindInvalidInput},
		{name: "name taken by another user", req: CreateFundRequest{Name: "Rent", Percentage: 10}, kind: domain.KindInvalidInput},
		{name: "negative percentage", req: CreateFundRequest{Name: "A", Percentage: -1}, kind: domain.KindInvalidPercentage},
		{name: "percentage above 100", req: CreateFundRequest{Name: "A", Percentage: 101}, kind: domain.KindInvalidPercentage},
		{name: "negative balance", req: CreateFundRequest{Name: "A", Percentage: 1, Balance: -5}, kind: domain.KindInvalidInput},
		{name: "zero numeric size", req: CreateFundRequest{Name: "A", Percentage: 1, Size: "0"}, kind: domain.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateFund(context.Background(), bob, tt.req)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestDeposit_SingleFund(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	ctx := context.Background()
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 10)

	deposits, err := svc.Deposit(ctx, alice, DepositRequest{Amount: 250, Target: "1", Source: "salary", Notes: "march"})
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, fund.ID, deposits[0].DepositedTo)
	assert.Equal(t, 250.0, deposits[0].DepositedAmount)
	assert.Equal(t, "salary", deposits[0].DepositSource)

	stored, err := repo.FindFund(ctx, fund.ID)
	require.NoError(t, err)
	assert.InDelta(t, 260, stored.Balance, 1e-9)
	assert.InDelta(t, 250, stored.TotalDeposits, 1e-9)
	require.NotNil(t, stored.LastDeposit)

	history, err := svc.ListDeposits(ctx, alice, AllFunds)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, EventDepositCreated, notifier.events[len(notifier.events)-1].Type)
}

func TestDeposit_NegativeAmountUsesMagnitude(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 0)

	_, err := svc.Deposit(ctx, alice, DepositRequest{Amount: -75, Target: "1", Source: "gift"})
	require.NoError(t, err)

	stored, err := repo.FindFund(ctx, fund.ID)
	require.NoError(t, err)
	assert.InDelta(t, 75, stored.Balance, 1e-9)
}

func TestDeposit_AllFundsSplitsByPercentage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	rent := mustCreateFund(t, svc, alice, "Rent", 40, 0)
	savings := mustCreateFund(t, svc, alice, "Savings", 30, 0)
	mustCreateFund(t, svc, bob, "Bob Rent", 100, 0)

	deposits, err := svc.Deposit(ctx, alice, DepositRequest{Amount: 1000, Target: AllFunds, Source: "salary"})
	require.NoError(t, err)
	require.Len(t, deposits, 2)

	var total float64
	for _, d := range deposits {
		total += d.DepositedAmount
	}
	assert.InDelta(t, 700, total, 1e-9)

	stored, err := repo.FindFund(ctx, rent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 400, stored.Balance, 1e-9)
	stored, err = repo.FindFund(ctx, savings.ID)
	require.NoError(t, err)
	assert.InDelta(t, 300, stored.Balance, 1e-9)

	bobFunds, err := repo.FindFundsByUser(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, bobFunds[0].Balance, "other users' funds are untouched")
}

func TestDeposit_AllFundsSumsToAmountWhenFullyAllocated(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreateFund(t, svc, alice, "A", 33.3, 0)
	mustCreateFund(t, svc, alice, "B", 33.3, 0)
	mustCreateFund(t, svc, alice, "C", 33.4, 0)

	deposits, err := svc.Deposit(context.Background(), alice, DepositRequest{Amount: 123.45, Target: AllFunds, Source: "bonus"})
	require.NoError(t, err)
	require.Len(t, deposits, 3)
	var total float64
	for _, d := range deposits {
		total += d.DepositedAmount
	}
	assert.InDelta(t, 123.45, total, 1e-9)
}

func TestDeposit_AllFundsLogsZeroPercentFunds(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	mustCreateFund(t, svc, alice, "Rent", 50, 0)
	idle := mustCreateFund(t, svc, alice, "Idle", 0, 5)

	deposits, err := svc.Deposit(ctx, alice, DepositRequest{Amount: 100, Target: AllFunds, Source: "salary"})
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, idle.ID, deposits[1].DepositedTo)
	assert.Zero(t, deposits[1].DepositedAmount)

	stored, err := repo.FindFund(ctx, idle.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5, stored.Balance, 1e-9)
	assert.NotNil(t, stored.LastDeposit)
}

func TestDeposit_AllFundsStopsAtDeletedFund(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	rent := mustCreateFund(t, svc, alice, "Rent", 40, 0)
	savings := mustCreateFund(t, svc, alice, "Savings", 30, 0)
	listed, err := repo.FindFundsByUser(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteFund(ctx, alice, savings.ID))

	log := logrus.New()
	log.SetOutput(io.Discard)
	stale := NewService(&staleFundsRepo{Repository: repo, funds: listed}, nil, log)

	deposits, err := stale.Deposit(ctx, alice, DepositRequest{Amount: 1000, Target: AllFunds, Source: "salary"})
	requireKind(t, err, domain.KindNotFound)
	require.Len(t, deposits, 1, "deposits committed before the failure are returned")
	assert.Equal(t, rent.ID, deposits[0].DepositedTo)
	assert.InDelta(t, 400, deposits[0].DepositedAmount, 1e-9)

	stored, err := repo.FindFund(ctx, rent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 400, stored.Balance, 1e-9)

	history, err := repo.ListDeposits(ctx, alice, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeposit_Failures(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustCreateFund(t, svc, alice, "Rent", 40, 0)

	_, err := svc.Deposit(ctx, bob, DepositRequest{Amount: 10, Target: "1", Source: "x"})
	requireKind(t, err, domain.KindForbidden)

	_, err = svc.Deposit(ctx, alice, DepositRequest{Amount: 10, Target: "999", Source: "x"})
	requireKind(t, err, domain.KindForbidden)

	_, err = svc.Deposit(ctx, alice, DepositRequest{Amount: 0, Target: "1", Source: "x"})
	requireKind(t, err, domain.KindInvalidInput)

	_, err = svc.Deposit(ctx, alice, DepositRequest{Amount: 10, Target: "rent", Source: "x"})
	requireKind(t, err, domain.KindInvalidInput)

	_, err = svc.Deposit(ctx, alice, DepositRequest{Amount: 10, Target: "1"})
	requireKind(t, err, domain.KindInvalidInput)

	_, err = svc.Deposit(ctx, bob, DepositRequest{Amount: 10, Target: AllFunds, Source: "x"})
	requireKind(t, err, domain.KindNotFound)
}

func TestWithdraw(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	ctx := context.Background()
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 100)

	withdrawal, err := svc.Withdraw(ctx, alice, WithdrawRequest{Amount: 30, FundID: fund.ID, Reason: "bill"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, withdrawal.WithdrawnAmount)
	assert.Equal(t, "bill", withdrawal.WithdrawalReason)

	stored, err := repo.FindFund(ctx, fund.ID)
	require.NoError(t, err)
	assert.InDelta(t, 70, stored.Balance, 1e-9)
	assert.InDelta(t, 30, stored.TotalWithdrawals, 1e-9)
	assert.NotNil(t, stored.LastWithdrawal)
	assert.Equal(t, EventWithdrawalCreated, notifier.events[len(notifier.events)-1].Type)
}

func TestWithdraw_InsufficientFundsLeavesFundUnchanged(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 100)

	_, err := svc.Withdraw(ctx, alice, WithdrawRequest{Amount: 150, FundID: fund.ID})
	requireKind(t, err, domain.KindInsufficientFunds)
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	stored, err := repo.FindFund(ctx, fund.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100, stored.Balance, 1e-9)
	assert.Zero(t, stored.TotalWithdrawals)
	assert.Nil(t, stored.LastWithdrawal)

	history, err := svc.ListWithdrawals(ctx, alice, AllFunds)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWithdraw_ExactBalanceAllowed(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 100)

	_, err := svc.Withdraw(ctx, alice, WithdrawRequest{Amount: -100, FundID: fund.ID})
	require.NoError(t, err)
	stored, err := repo.FindFund(ctx, fund.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Balance)
}

func TestWithdraw_OtherUsersFundForbidden(t *testing.T) {
	svc, _, _ := newTestService(t)
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 100)

	_, err := svc.Withdraw(context.Background(), bob, WithdrawRequest{Amount: 1, FundID: fund.ID})
	requireKind(t, err, domain.KindForbidden)
}

func TestFundUpdates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	rent := mustCreateFund(t, svc, alice, "Rent", 40, 0)
	mustCreateFund(t, svc, alice, "Savings", 50, 0)

	t.Run("percentage excludes own value", func(t *testing.T) {
		fund, err := svc.SetFundPercentage(ctx, alice, rent.ID, 50)
		require.NoError(t, err)
		assert.Equal(t, 50.0, fund.FundPercentage)
	})
	t.Run("percentage over allocation", func(t *testing.T) {
		_, err := svc.SetFundPercentage(ctx, alice, rent.ID, 51)
		requireKind(t, err, domain.KindInvalidPercentage)
	})
	t.Run("rename", func(t *testing.T) {
		fund, err := svc.SetFundName(ctx, alice, rent.ID, "Housing")
		require.NoError(t, err)
		assert.Equal(t, "Housing", fund.FundName)
	})
	t.Run("rename to own name", func(t *testing.T) {
		_, err := svc.SetFundName(ctx, alice, rent.ID, "Housing")
		assert.NoError(t, err)
	})
	t.Run("rename to taken name", func(t *testing.T) {
		_, err := svc.SetFundName(ctx, alice, rent.ID, "Savings")
		requireKind(t, err, domain.KindInvalidInput)
	})
	t.Run("size", func(t *testing.T) {
		fund, err := svc.SetFundSize(ctx, alice, rent.ID, "1500")
		require.NoError(t, err)
		assert.Equal(t, "1500", fund.Size)

		_, err = svc.SetFundSize(ctx, alice, rent.ID, "-3")
		requireKind(t, err, domain.KindInvalidInput)
	})
	t.Run("notes", func(t *testing.T) {
		fund, err := svc.SetFundNotes(ctx, alice, rent.ID, "due on the 1st")
		require.NoError(t, err)
		assert.Equal(t, "due on the 1st", fund.Notes)
	})
	t.Run("other user", func(t *testing.T) {
		_, err := svc.SetFundNotes(ctx, bob, rent.ID, "mine now")
		requireKind(t, err, domain.KindForbidden)
		_, err = svc.GetFund(ctx, bob, rent.ID)
		requireKind(t, err, domain.KindForbidden)
	})
}

func TestDeleteFund_RetainsHistory(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 0)
	_, err := svc.Deposit(ctx, alice, DepositRequest{Amount: 50, Target: "1", Source: "salary"})
	require.NoError(t, err)

	requireKind(t, svc.DeleteFund(ctx, bob, fund.ID), domain.KindForbidden)
	require.NoError(t, svc.DeleteFund(ctx, alice, fund.ID))

	_, err = repo.FindFund(ctx, fund.ID)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	deposits, err := svc.ListDeposits(ctx, alice, AllFunds)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, fund.ID, deposits[0].DepositedTo)
}

func TestHistoryScopes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	rent := mustCreateFund(t, svc, alice, "Rent", 40, 0)
	savings := mustCreateFund(t, svc, alice, "Savings", 60, 0)
	mustCreateFund(t, svc, bob, "Bob Rent", 100, 0)

	_, err := svc.Deposit(ctx, alice, DepositRequest{Amount: 100, Target: AllFunds, Source: "salary"})
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, bob, DepositRequest{Amount: 100, Target: AllFunds, Source: "salary"})
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, alice, WithdrawRequest{Amount: 10, FundID: savings.ID})
	require.NoError(t, err)

	all, err := svc.ListDeposits(ctx, alice, AllFunds)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, rent.ID, all[0].DepositedTo, "ascending creation order")

	forRent, err := svc.ListDeposits(ctx, alice, "1")
	require.NoError(t, err)
	require.Len(t, forRent, 1)
	assert.InDelta(t, 40, forRent[0].DepositedAmount, 1e-9)

	withdrawals, err := svc.ListWithdrawals(ctx, alice, "2")
	require.NoError(t, err)
	assert.Len(t, withdrawals, 1)

	_, err = svc.ListDeposits(ctx, bob, "1")
	requireKind(t, err, domain.KindForbidden)
	_, err = svc.ListWithdrawals(ctx, alice, "abc")
	requireKind(t, err, domain.KindInvalidInput)

	deposit, err := svc.GetDeposit(ctx, alice, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, deposit.ID)
	_, err = svc.GetDeposit(ctx, bob, all[0].ID)
	requireKind(t, err, domain.KindForbidden)
	_, err = svc.GetWithdrawal(ctx, alice, 42)
	requireKind(t, err, domain.KindNotFound)
}

func TestNotifierFailureDoesNotFailMutation(t *testing.T) {
	svc, _, notifier := newTestService(t)
	notifier.err = errors.New("broker down")
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 0)

	_, err := svc.Deposit(context.Background(), alice, DepositRequest{Amount: 5, Target: "1", Source: "x"})
	assert.NoError(t, err)
	assert.Equal(t, fund.ID, notifier.events[len(notifier.events)-1].FundID)
}

func TestDepositTimestampsUseClock(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 0)

	_, err := svc.Deposit(ctx, alice, DepositRequest{Amount: 5, Target: "1", Source: "x"})
	require.NoError(t, err)
	stored, err := repo.FindFund(ctx, fund.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastDeposit)
	assert.True(t, fixed.Equal(*stored.LastDeposit))
}

func TestConcurrentWithdrawalsAndDeposits(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	fund := mustCreateFund(t, svc, alice, "Rent", 40, 100)
	target := strconv.FormatUint(uint64(fund.ID), 10)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		withdrawn int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, wErr := svc.Withdraw(ctx, alice, WithdrawRequest{Amount: 10, FundID: fund.ID})
			_, dErr := svc.Deposit(ctx, alice, DepositRequest{Amount: 1, Target: target, Source: "refund"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case wErr == nil:
				withdrawn++
			case domain.KindOf(wErr) != domain.KindInsufficientFunds:
				failures = append(failures, wErr)
			}
			if dErr != nil {
				failures = append(failures, dErr)
			}
		}()
	}
	wg.Wait()
	require.Empty(t, failures)
	// A refused withdrawal means the balance was below 10, which takes at least ten successes.
	assert.GreaterOrEqual(t, withdrawn, 10)

	stored, err := repo.FindFund(ctx, fund.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100+workers-10*float64(withdrawn), stored.Balance, 1e-9)
	assert.GreaterOrEqual(t, stored.Balance, 0.0)
	assert.InDelta(t, workers, stored.TotalDeposits, 1e-9)
	assert.InDelta(t, 10*float64(withdrawn), stored.TotalWithdrawals, 1e-9)

	deposits, err := repo.ListDeposits(ctx, alice, fund.ID)
	require.NoError(t, err)
	assert.Len(t, deposits, workers)
	withdrawals, err := repo.ListWithdrawals(ctx, alice, fund.ID)
	require.NoError(t, err)
	assert.Len(t, withdrawals, withdrawn)
}

func TestAccessGuardAndAllocationValidator(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	rent := mustCreateFund(t, svc, alice, "Rent", 60, 0)

	guard := NewAccessGuard(repo)
	fund, err := guard.Authorize(ctx, rent.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Rent", fund.FundName)

	_, err = guard.Authorize(ctx, rent.ID, bob)
	requireKind(t, err, domain.KindForbidden)
	assert.NotErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = guard.Authorize(ctx, 999, alice)
	requireKind(t, err, domain.KindForbidden)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound, "a missing fund stays distinguishable in code")

	validator := NewAllocationValidator(repo)
	assert.NoError(t, validator.Validate(ctx, alice, 40, 0))
	requireKind(t, validator.Validate(ctx, alice, 41, 0), domain.KindInvalidPercentage)
	assert.NoError(t, validator.Validate(ctx, alice, 100, rent.ID), "the updated fund's own share is excluded")
}
