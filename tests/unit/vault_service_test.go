package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	vaultservice "merkledrop/contexts/settlement/vault-service"
	"merkledrop/contexts/settlement/vault-service/application/commands"
	vaulterrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	vaulthttp "merkledrop/contexts/settlement/vault-service/transport/http"
	"merkledrop/internal/shared/chain"
	"merkledrop/internal/shared/merkle"
)

func addrByte(b byte) chain.Address {
	var addr chain.Address
	addr[chain.AddressLen-1] = b
	return addr
}

// vaultFixture wires the in-memory vault with a two-leaf commitment:
// recipient one nets 4950 releasable at t=1000, recipient two nets 2970
// releasable at t=2000. A gross deposit of 8000 at 100 bps covers both.
type vaultFixture struct {
	vault      vaultservice.Module
	owner      chain.Address
	admin      chain.Address
	feeAccount chain.Address
	depositor  chain.Address

	root       chain.Digest
	recipient1 chain.Address
	recipient2 chain.Address
	proof1     []chain.Digest
	proof2     []chain.Digest
	now        uint64
}

const (
	fixtureNet1     = 4950
	fixtureNet2     = 2970
	fixtureRelease1 = 1000
	fixtureRelease2 = 2000
	fixtureGross    = 8000
	fixtureFee      = 80
	fixtureNet      = 7920
)

func newVaultFixture(t *testing.T) *vaultFixture {
	t.Helper()

	f := &vaultFixture{
		owner:      addrByte(0x01),
		admin:      addrByte(0x02),
		feeAccount: addrByte(0x03),
		depositor:  addrByte(0x04),
		recipient1: addrByte(0x11),
		recipient2: addrByte(0x12),
		now:        1500,
	}
	f.vault = vaultservice.NewInMemoryModule(f.owner, entities.FeeConfig{
		RateBps:   100,
		Recipient: f.feeAccount,
	}, nil)
	f.vault.Store.NowFunc = func() time.Time {
		return time.Unix(int64(f.now), 0)
	}

	ctx := context.Background()
	if err := f.vault.Commands.GrantRole(ctx, f.admin, entities.RoleAdmin, f.owner); err != nil {
		t.Fatalf("admin grant failed: %v", err)
	}

	leaves := []chain.Digest{
		merkle.LeafHash(f.recipient1, fixtureNet1, fixtureRelease1),
		merkle.LeafHash(f.recipient2, fixtureNet2, fixtureRelease2),
	}
	root, proofs, err := merkle.BuildTree(leaves)
	if err != nil {
		t.Fatalf("tree build failed: %v", err)
	}
	f.root = root
	f.proof1 = proofs[0]
	f.proof2 = proofs[1]
	return f
}

func (f *vaultFixture) createDeposit(t *testing.T) entities.Deposit {
	t.Helper()
	deposit, err := f.vault.Commands.CreateDeposit(context.Background(), commands.CreateDepositCommand{
		Root:          f.root,
		Depositor:     f.depositor,
		Value:         fixtureGross,
		DeclaredTotal: fixtureNet1 + fixtureNet2,
	})
	if err != nil {
		t.Fatalf("deposit creation failed: %v", err)
	}
	return deposit
}

func (f *vaultFixture) withdraw1(caller chain.Address) error {
	return f.vault.Commands.ExecuteWithdrawal(context.Background(), commands.ExecuteWithdrawalCommand{
		Root:        f.root,
		Recipient:   f.recipient1,
		Amount:      fixtureNet1,
		ReleaseTime: fixtureRelease1,
		Proof:       f.proof1,
		Caller:      caller,
	})
}

func (f *vaultFixture) withdraw2(caller chain.Address) error {
	return f.vault.Commands.ExecuteWithdrawal(context.Background(), commands.ExecuteWithdrawalCommand{
		Root:        f.root,
		Recipient:   f.recipient2,
		Amount:      fixtureNet2,
		ReleaseTime: fixtureRelease2,
		Proof:       f.proof2,
		Caller:      caller,
	})
}

func TestVaultSettlementLifecycle(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	deposit := f.createDeposit(t)
	if deposit.RemainingAmount != fixtureNet {
		t.Fatalf("net balance must be %d, got %d", fixtureNet, deposit.RemainingAmount)
	}
	if got := f.vault.Treasury.BalanceOf(f.feeAccount); got != fixtureFee {
		t.Fatalf("fee recipient must hold %d, got %d", fixtureFee, got)
	}

	if err := f.withdraw1(f.admin); err != nil {
		t.Fatalf("due withdrawal failed: %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient1); got != fixtureNet1 {
		t.Fatalf("recipient one must hold %d, got %d", fixtureNet1, got)
	}
	remaining, err := f.vault.Deposits.GetDeposit(ctx, f.root)
	if err != nil {
		t.Fatalf("deposit lookup failed: %v", err)
	}
	if remaining.RemainingAmount != fixtureNet2 {
		t.Fatalf("remaining balance must be %d, got %d", fixtureNet2, remaining.RemainingAmount)
	}

	if err := f.withdraw1(f.admin); !errors.Is(err, vaulterrors.ErrAlreadyClaimed) {
		t.Fatalf("replay must be ErrAlreadyClaimed, got %v", err)
	}

	if err := f.withdraw2(f.admin); !errors.Is(err, vaulterrors.ErrNotYetReleasable) {
		t.Fatalf("future leaf must be ErrNotYetReleasable, got %v", err)
	}

	// Release time is inclusive: now == releaseTime must pass.
	f.now = fixtureRelease2
	if err := f.withdraw2(f.admin); err != nil {
		t.Fatalf("boundary withdrawal failed: %v", err)
	}

	// Draining the balance removes the deposit.
	if _, err := f.vault.Deposits.GetDeposit(ctx, f.root); !errors.Is(err, vaulterrors.ErrDepositNotFound) {
		t.Fatalf("drained deposit must be gone, got %v", err)
	}
	claimed, err := f.vault.Deposits.HasWithdrawn(ctx, f.root, f.recipient2, fixtureRelease2)
	if err != nil {
		t.Fatalf("claimed lookup failed: %v", err)
	}
	if !claimed {
		t.Fatalf("claimed flag must survive deposit removal")
	}
}

func TestFeeExactnessAtFullAmountRange(t *testing.T) {
	// 2^60 at the fee ceiling: the 64-bit product value*rateBps wraps, so
	// the exact quotient only comes out of the widened multiplication.
	const largeValue = uint64(1) << 60
	const expectedFee = uint64(115292150460684697) // floor(2^60 * 1000 / 10000)
	const expectedNet = largeValue - expectedFee

	if got := entities.FeeFor(largeValue, entities.MaxFeeBps); got != expectedFee {
		t.Fatalf("FeeFor(%d, %d) = %d, want %d", largeValue, entities.MaxFeeBps, got, expectedFee)
	}

	owner := addrByte(0x01)
	feeAccount := addrByte(0x03)
	vault := vaultservice.NewInMemoryModule(owner, entities.FeeConfig{
		RateBps:   entities.MaxFeeBps,
		Recipient: feeAccount,
	}, nil)

	root := merkle.LeafHash(addrByte(0x11), expectedNet, 1000)
	deposit, err := vault.Commands.CreateDeposit(context.Background(), commands.CreateDepositCommand{
		Root:      root,
		Depositor: addrByte(0x04),
		Value:     largeValue,
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if deposit.RemainingAmount != expectedNet {
		t.Fatalf("remaining must be %d, got %d", expectedNet, deposit.RemainingAmount)
	}
	if got := vault.Treasury.BalanceOf(feeAccount); got != expectedFee {
		t.Fatalf("fee recipient must be credited %d, got %d", expectedFee, got)
	}
}

func TestHundredUnitTwoLeafScenario(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	recipientA := addrByte(0x21)
	recipientB := addrByte(0x22)
	const t1, t2 = 3000, 4000
	leaves := []chain.Digest{
		merkle.LeafHash(recipientA, 50, t1),
		merkle.LeafHash(recipientB, 49, t2),
	}
	root, proofs, err := merkle.BuildTree(leaves)
	if err != nil {
		t.Fatalf("tree build failed: %v", err)
	}

	// 100 units at 1% fee: remaining 99, fee recipient gains exactly 1.
	feeBefore := f.vault.Treasury.BalanceOf(f.feeAccount)
	deposit, err := f.vault.Commands.CreateDeposit(ctx, commands.CreateDepositCommand{
		Root:      root,
		Depositor: f.depositor,
		Value:     100,
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if deposit.RemainingAmount != 99 {
		t.Fatalf("remaining must be 99, got %d", deposit.RemainingAmount)
	}
	if gained := f.vault.Treasury.BalanceOf(f.feeAccount) - feeBefore; gained != 1 {
		t.Fatalf("fee recipient must gain exactly 1, got %d", gained)
	}

	withdraw := func(recipient chain.Address, amount uint64, releaseTime uint64, proof []chain.Digest) error {
		return f.vault.Commands.ExecuteWithdrawal(ctx, commands.ExecuteWithdrawalCommand{
			Root:        root,
			Recipient:   recipient,
			Amount:      amount,
			ReleaseTime: releaseTime,
			Proof:       proof,
			Caller:      f.admin,
		})
	}

	f.now = t1 - 1
	if err := withdraw(recipientA, 50, t1, proofs[0]); !errors.Is(err, vaulterrors.ErrNotYetReleasable) {
		t.Fatalf("leaf A before t1 must be ErrNotYetReleasable, got %v", err)
	}
	if err := withdraw(recipientB, 49, t2, proofs[1]); !errors.Is(err, vaulterrors.ErrNotYetReleasable) {
		t.Fatalf("leaf B before t1 must be ErrNotYetReleasable, got %v", err)
	}

	f.now = t1
	if err := withdraw(recipientA, 50, t1, proofs[0]); err != nil {
		t.Fatalf("leaf A at t1 failed: %v", err)
	}
	remaining, err := f.vault.Deposits.GetDeposit(ctx, root)
	if err != nil {
		t.Fatalf("deposit lookup failed: %v", err)
	}
	if remaining.RemainingAmount != 49 {
		t.Fatalf("remaining must be 49 after leaf A, got %d", remaining.RemainingAmount)
	}

	f.now = t2
	if err := withdraw(recipientB, 49, t2, proofs[1]); err != nil {
		t.Fatalf("leaf B at t2 failed: %v", err)
	}
	if _, err := f.vault.Deposits.GetDeposit(ctx, root); !errors.Is(err, vaulterrors.ErrDepositNotFound) {
		t.Fatalf("exhausted deposit must be removed, got %v", err)
	}
}

func TestWithdrawalAuthorizationPrecedesValidation(t *testing.T) {
	f := newVaultFixture(t)
	f.createDeposit(t)

	intruder := addrByte(0x66)
	err := f.vault.Commands.ExecuteWithdrawal(context.Background(), commands.ExecuteWithdrawalCommand{
		Root:        f.root,
		Recipient:   f.recipient1,
		Amount:      999999, // would also fail proof validation
		ReleaseTime: fixtureRelease1,
		Proof:       nil,
		Caller:      intruder,
	})
	if !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("unauthorized caller must fail closed before validation, got %v", err)
	}
}

func TestWithdrawalRejectsForgedAmount(t *testing.T) {
	f := newVaultFixture(t)
	f.createDeposit(t)

	err := f.vault.Commands.ExecuteWithdrawal(context.Background(), commands.ExecuteWithdrawalCommand{
		Root:        f.root,
		Recipient:   f.recipient1,
		Amount:      fixtureNet1 + 1,
		ReleaseTime: fixtureRelease1,
		Proof:       f.proof1,
		Caller:      f.admin,
	})
	if !errors.Is(err, vaulterrors.ErrProofInvalid) {
		t.Fatalf("forged amount must be ErrProofInvalid, got %v", err)
	}
}

func TestWithdrawalTransferFailureRollsBack(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	f.vault.Treasury.FailNext = true
	if err := f.withdraw1(f.admin); !errors.Is(err, vaulterrors.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	claimed, err := f.vault.Deposits.HasWithdrawn(ctx, f.root, f.recipient1, fixtureRelease1)
	if err != nil {
		t.Fatalf("claimed lookup failed: %v", err)
	}
	if claimed {
		t.Fatalf("failed transfer must not leave the leaf claimed")
	}
	deposit, err := f.vault.Deposits.GetDeposit(ctx, f.root)
	if err != nil {
		t.Fatalf("deposit lookup failed: %v", err)
	}
	if deposit.RemainingAmount != fixtureNet {
		t.Fatalf("balance must be restored to %d, got %d", fixtureNet, deposit.RemainingAmount)
	}

	// The same leaf is retryable once the collaborator recovers.
	if err := f.withdraw1(f.admin); err != nil {
		t.Fatalf("retry after rollback failed: %v", err)
	}
}

func TestCreateDepositRollsBackWhenFeeTransferFails(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	f.vault.Treasury.FailNext = true
	_, err := f.vault.Commands.CreateDeposit(ctx, commands.CreateDepositCommand{
		Root:      f.root,
		Depositor: f.depositor,
		Value:     fixtureGross,
	})
	if !errors.Is(err, vaulterrors.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if _, err := f.vault.Deposits.GetDeposit(ctx, f.root); !errors.Is(err, vaulterrors.ErrDepositNotFound) {
		t.Fatalf("no deposit may remain after fee rollback, got %v", err)
	}

	// And the root stays usable for a clean retry.
	f.createDeposit(t)
}

func TestCreateDepositRejectsDuplicateRoot(t *testing.T) {
	f := newVaultFixture(t)
	f.createDeposit(t)

	_, err := f.vault.Commands.CreateDeposit(context.Background(), commands.CreateDepositCommand{
		Root:      f.root,
		Depositor: f.depositor,
		Value:     fixtureGross,
	})
	if !errors.Is(err, vaulterrors.ErrDuplicateDeposit) {
		t.Fatalf("expected ErrDuplicateDeposit, got %v", err)
	}
}

func TestCreateDepositDeclaredTotalGuard(t *testing.T) {
	f := newVaultFixture(t)

	// Gross 8000 nets 7920, so declaring 8000 payable must be rejected.
	_, err := f.vault.Commands.CreateDeposit(context.Background(), commands.CreateDepositCommand{
		Root:          f.root,
		Depositor:     f.depositor,
		Value:         fixtureGross,
		DeclaredTotal: fixtureGross,
	})
	if !errors.Is(err, vaulterrors.ErrInvalidInput) {
		t.Fatalf("underfunded declared total must be ErrInvalidInput, got %v", err)
	}
}

func TestPauseGatesFlowsButNotRecovery(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	if err := f.vault.Commands.SetPaused(ctx, true, f.admin); !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("pause is owner-only, got %v", err)
	}
	if err := f.vault.Commands.SetPaused(ctx, true, f.owner); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	if _, err := f.vault.Commands.CreateDeposit(ctx, commands.CreateDepositCommand{
		Root:      chain.Digest{0x01},
		Depositor: f.depositor,
		Value:     100,
	}); !errors.Is(err, vaulterrors.ErrVaultPaused) {
		t.Fatalf("paused deposit must be ErrVaultPaused, got %v", err)
	}
	if err := f.withdraw1(f.admin); !errors.Is(err, vaulterrors.ErrVaultPaused) {
		t.Fatalf("paused withdrawal must be ErrVaultPaused, got %v", err)
	}

	// Owner recovery stays available while paused.
	if err := f.vault.Commands.EmergencyWithdraw(ctx, f.root, f.owner); err != nil {
		t.Fatalf("emergency withdraw while paused failed: %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.depositor); got != fixtureNet {
		t.Fatalf("depositor refund must be %d, got %d", fixtureNet, got)
	}
	if _, err := f.vault.Deposits.GetDeposit(ctx, f.root); !errors.Is(err, vaulterrors.ErrDepositNotFound) {
		t.Fatalf("deposit must be removed after recovery, got %v", err)
	}
}

func TestEmergencyWithdrawRestoresDepositOnTransferFailure(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	f.vault.Treasury.FailNext = true
	if err := f.vault.Commands.EmergencyWithdraw(ctx, f.root, f.owner); !errors.Is(err, vaulterrors.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	deposit, err := f.vault.Deposits.GetDeposit(ctx, f.root)
	if err != nil {
		t.Fatalf("deposit must be restored, got %v", err)
	}
	if deposit.RemainingAmount != fixtureNet {
		t.Fatalf("restored balance must be %d, got %d", fixtureNet, deposit.RemainingAmount)
	}
}

func TestDeleteDepositRemovesWithoutPayment(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	if err := f.vault.Commands.DeleteDeposit(ctx, f.root, f.admin); !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("delete is owner-only, got %v", err)
	}
	if err := f.vault.Commands.DeleteDeposit(ctx, f.root, f.owner); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.depositor); got != 0 {
		t.Fatalf("delete must move no value, depositor holds %d", got)
	}
	if _, err := f.vault.Deposits.GetDeposit(ctx, f.root); !errors.Is(err, vaulterrors.ErrDepositNotFound) {
		t.Fatalf("deposit must be gone after delete, got %v", err)
	}
}

func TestFeeRateBounds(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()

	if err := f.vault.Commands.SetFeeRate(ctx, 0, f.owner); !errors.Is(err, vaulterrors.ErrInvalidFeeRate) {
		t.Fatalf("zero rate must be ErrInvalidFeeRate, got %v", err)
	}
	if err := f.vault.Commands.SetFeeRate(ctx, entities.MaxFeeBps+1, f.owner); !errors.Is(err, vaulterrors.ErrInvalidFeeRate) {
		t.Fatalf("rate above ceiling must be ErrInvalidFeeRate, got %v", err)
	}
	if err := f.vault.Commands.SetFeeRate(ctx, entities.MaxFeeBps, f.owner); err != nil {
		t.Fatalf("ceiling rate must be accepted: %v", err)
	}
	rate, err := f.vault.Config.CurrentFeeRateBps(ctx)
	if err != nil {
		t.Fatalf("rate lookup failed: %v", err)
	}
	if rate != entities.MaxFeeBps {
		t.Fatalf("rate must read back as %d, got %d", entities.MaxFeeBps, rate)
	}
}

func TestRevokedAdminCannotWithdraw(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	if err := f.vault.Commands.RevokeRole(ctx, f.admin, entities.RoleAdmin, f.owner); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := f.withdraw1(f.admin); !errors.Is(err, vaulterrors.ErrUnauthorized) {
		t.Fatalf("revoked admin must be ErrUnauthorized, got %v", err)
	}
}

func TestEligibilityHandlerReportsClaimState(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	proof := make([]string, len(f.proof1))
	for i, sibling := range f.proof1 {
		proof[i] = sibling.Hex()
	}
	request := vaulthttp.EligibilityRequest{
		Root:        f.root.Hex(),
		Recipient:   f.recipient1.Hex(),
		Amount:      fixtureNet1,
		ReleaseTime: fixtureRelease1,
		Proof:       proof,
	}

	resp, err := f.vault.Handler.CheckEligibilityHandler(ctx, request)
	if err != nil {
		t.Fatalf("eligibility check failed: %v", err)
	}
	if !resp.Eligible {
		t.Fatalf("due, unclaimed leaf must be eligible")
	}

	if err := f.withdraw1(f.admin); err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}
	resp, err = f.vault.Handler.CheckEligibilityHandler(ctx, request)
	if !errors.Is(err, vaulterrors.ErrAlreadyClaimed) {
		t.Fatalf("claimed leaf must report ErrAlreadyClaimed, got %v", err)
	}
	if resp.Eligible {
		t.Fatalf("claimed leaf must not be eligible")
	}
}
