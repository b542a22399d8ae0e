package unit

import (
	"context"
	"errors"
	"testing"

	"merkledrop/contexts/settlement/vault-service/application/workers"
	vaulterrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

type staticArtifactSource map[chain.Digest][]ports.ReleaseEntry

func (s staticArtifactSource) ReleaseEntries(_ context.Context, root chain.Digest) ([]ports.ReleaseEntry, error) {
	entries, ok := s[root]
	if !ok {
		return nil, errors.New("artifact unavailable")
	}
	return entries, nil
}

type capturePublisher struct {
	events []ports.EventEnvelope
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	p.events = append(p.events, event)
	return nil
}

func (f *vaultFixture) releaseEntries() []ports.ReleaseEntry {
	return []ports.ReleaseEntry{
		{Recipient: f.recipient1, Amount: fixtureNet1, ReleaseTime: fixtureRelease1, Proof: f.proof1},
		{Recipient: f.recipient2, Amount: fixtureNet2, ReleaseTime: fixtureRelease2, Proof: f.proof2},
	}
}

func (f *vaultFixture) watcher(artifacts ports.ArtifactSource) workers.ReleaseWatcher {
	return workers.ReleaseWatcher{
		Deposits:    f.vault.Deposits,
		Eligibility: f.vault.Handler.Eligibility,
		Withdrawals: f.vault.Commands,
		Artifacts:   artifacts,
		Caller:      f.admin,
	}
}

func TestReleaseWatcherSettlesDueLeavesOnly(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	watcher := f.watcher(staticArtifactSource{f.root: f.releaseEntries()})

	// t=1500: only the first leaf is due.
	if err := watcher.RunOnce(ctx); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient1); got != fixtureNet1 {
		t.Fatalf("due leaf must be paid %d, got %d", fixtureNet1, got)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient2); got != 0 {
		t.Fatalf("future leaf must not be paid, got %d", got)
	}

	// Re-running must not double-pay the settled leaf.
	if err := watcher.RunOnce(ctx); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient1); got != fixtureNet1 {
		t.Fatalf("settled leaf paid twice: %d", got)
	}

	f.now = fixtureRelease2
	if err := watcher.RunOnce(ctx); err != nil {
		t.Fatalf("third cycle failed: %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient2); got != fixtureNet2 {
		t.Fatalf("second leaf must be paid %d, got %d", fixtureNet2, got)
	}
	if _, err := f.vault.Deposits.GetDeposit(ctx, f.root); !errors.Is(err, vaulterrors.ErrDepositNotFound) {
		t.Fatalf("drained deposit must be removed, got %v", err)
	}

	// Empty vault: the cycle is a no-op, never an error.
	if err := watcher.RunOnce(ctx); err != nil {
		t.Fatalf("idle cycle failed: %v", err)
	}
}

func TestReleaseWatcherIsolatesArtifactFailures(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	// No artifact for the active root: the cycle logs and moves on.
	watcher := f.watcher(staticArtifactSource{})
	if err := watcher.RunOnce(ctx); err != nil {
		t.Fatalf("cycle must absorb artifact failures, got %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient1); got != 0 {
		t.Fatalf("nothing may settle without an artifact, got %d", got)
	}
}

func TestReleaseWatcherTransferFailureLeavesLeafRetryable(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)

	watcher := f.watcher(staticArtifactSource{f.root: f.releaseEntries()})

	f.vault.Treasury.FailNext = true
	if err := watcher.RunOnce(ctx); err != nil {
		t.Fatalf("cycle must absorb transfer failures, got %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient1); got != 0 {
		t.Fatalf("failed transfer must pay nothing, got %d", got)
	}

	if err := watcher.RunOnce(ctx); err != nil {
		t.Fatalf("retry cycle failed: %v", err)
	}
	if got := f.vault.Treasury.BalanceOf(f.recipient1); got != fixtureNet1 {
		t.Fatalf("retry must settle the leaf, got %d", got)
	}
}

func TestOutboxRelayPublishesSettlementEvents(t *testing.T) {
	f := newVaultFixture(t)
	ctx := context.Background()
	f.createDeposit(t)
	if err := f.withdraw1(f.admin); err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}

	publisher := &capturePublisher{}
	relay := workers.OutboxRelay{
		Outbox:    f.vault.Store,
		Publisher: publisher,
		Clock:     f.vault.Store,
		BatchSize: 10,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	types := make(map[string]int)
	for _, event := range publisher.events {
		types[event.EventType]++
		if event.PartitionKey != f.root.Hex() {
			t.Fatalf("partition key must be the root, got %q", event.PartitionKey)
		}
	}
	if types["vault.deposit.created"] != 1 {
		t.Fatalf("expected one deposit event, got %d", types["vault.deposit.created"])
	}
	if types["vault.withdrawal.executed"] != 1 {
		t.Fatalf("expected one withdrawal event, got %d", types["vault.withdrawal.executed"])
	}

	// Published rows must not relay twice.
	published := len(publisher.events)
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("second relay failed: %v", err)
	}
	if len(publisher.events) != published {
		t.Fatalf("relay republished %d events", len(publisher.events)-published)
	}
}
