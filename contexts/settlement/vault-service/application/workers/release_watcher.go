package workers

import (
	"context"
	"errors"
	"log/slog"

	application "merkledrop/contexts/settlement/vault-service/application"
	"merkledrop/contexts/settlement/vault-service/application/commands"
	"merkledrop/contexts/settlement/vault-service/application/queries"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

// ReleaseWatcher scans every active root each cycle, loads the root's
// artifact, and submits withdrawals for leaves whose release time has
// arrived. Each submission is awaited before the next leaf to keep payout
// ordering deterministic. No progress checkpoint exists: restart safety
// rests entirely on the vault's claimed flags.
type ReleaseWatcher struct {
	Deposits    queries.DepositQueries
	Eligibility queries.CheckEligibilityUseCase
	Withdrawals commands.UseCase
	Artifacts   ports.ArtifactSource
	Caller      chain.Address
	Logger      *slog.Logger
}

// RunOnce performs one full watcher cycle. Processing errors are isolated at
// leaf, root, and cycle level; the cycle always completes and never
// propagates a failure to the poll loop.
func (w ReleaseWatcher) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)

	count, err := w.Deposits.TotalActiveRoots(ctx)
	if err != nil {
		logger.Error("watcher root count failed",
			"event", "watcher_root_count_failed",
			"module", "settlement/vault-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return nil
	}
	if count == 0 {
		return nil
	}

	for index := 0; index < count; index++ {
		root, err := w.Deposits.RootAt(ctx, index)
		if err != nil {
			// Roots can disappear mid-cycle when a deposit drains.
			logger.Warn("watcher root lookup failed",
				"event", "watcher_root_lookup_failed",
				"module", "settlement/vault-service",
				"layer", "worker",
				"index", index,
				"error", err.Error(),
			)
			continue
		}
		w.processRoot(ctx, root)
	}
	return nil
}

func (w ReleaseWatcher) processRoot(ctx context.Context, root chain.Digest) {
	logger := application.ResolveLogger(w.Logger)

	entries, err := w.Artifacts.ReleaseEntries(ctx, root)
	if err != nil {
		logger.Warn("watcher artifact load failed",
			"event", "watcher_artifact_load_failed",
			"module", "settlement/vault-service",
			"layer", "worker",
			"root", root.Hex(),
			"error", err.Error(),
		)
		return
	}

	for _, entry := range entries {
		claimed, err := w.Deposits.HasWithdrawn(ctx, root, entry.Recipient, entry.ReleaseTime)
		if err != nil {
			logger.Warn("watcher claimed lookup failed",
				"event", "watcher_claimed_lookup_failed",
				"module", "settlement/vault-service",
				"layer", "worker",
				"root", root.Hex(),
				"recipient", entry.Recipient.Hex(),
				"error", err.Error(),
			)
			continue
		}
		if claimed {
			continue
		}

		if err := w.Eligibility.Execute(ctx, queries.EligibilityQuery{
			Root:        root,
			Recipient:   entry.Recipient,
			Amount:      entry.Amount,
			ReleaseTime: entry.ReleaseTime,
			Proof:       entry.Proof,
		}); err != nil {
			// Not-yet-due leaves come around again next cycle; anything
			// else is worth a warning but never stops the scan.
			if !errors.Is(err, domainerrors.ErrNotYetReleasable) {
				logger.Warn("watcher leaf ineligible",
					"event", "watcher_leaf_ineligible",
					"module", "settlement/vault-service",
					"layer", "worker",
					"root", root.Hex(),
					"recipient", entry.Recipient.Hex(),
					"release_time", entry.ReleaseTime,
					"reason", err.Error(),
				)
			}
			continue
		}

		if err := w.Withdrawals.ExecuteWithdrawal(ctx, commands.ExecuteWithdrawalCommand{
			Root:        root,
			Recipient:   entry.Recipient,
			Amount:      entry.Amount,
			ReleaseTime: entry.ReleaseTime,
			Proof:       entry.Proof,
			Caller:      w.Caller,
		}); err != nil {
			logger.Error("watcher withdrawal failed",
				"event", "watcher_withdrawal_failed",
				"module", "settlement/vault-service",
				"layer", "worker",
				"root", root.Hex(),
				"recipient", entry.Recipient.Hex(),
				"amount", entry.Amount,
				"error", err.Error(),
			)
			continue
		}
		logger.Info("watcher settled leaf",
			"event", "watcher_leaf_settled",
			"module", "settlement/vault-service",
			"layer", "worker",
			"root", root.Hex(),
			"recipient", entry.Recipient.Hex(),
			"amount", entry.Amount,
			"release_time", entry.ReleaseTime,
		)
	}
}
