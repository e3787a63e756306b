package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/guidesync/internal/common"
	"github.com/dmitrijs2005/guidesync/internal/logging"
	"github.com/dmitrijs2005/guidesync/internal/server/models"
	"github.com/dmitrijs2005/guidesync/internal/server/remote"
	deploymentrepo "github.com/dmitrijs2005/guidesync/internal/server/repositories/deployments"
	instancerepo "github.com/dmitrijs2005/guidesync/internal/server/repositories/instances"
)

// BackupStore is the backup capability the executor needs: snapshot before
// writing, payload back for rollback.
type BackupStore interface {
	CreateForInstance(ctx context.Context, instanceID string, payload []byte) (*models.Backup, error)
	GetWithPayload(ctx context.Context, id string) (*models.Backup, error)
}

// Options tune the executor's write path.
type Options struct {
	// Throttle is the pause between consecutive remote writes.
	Throttle time.Duration
	// RetryBaseDelay seeds the exponential backoff for transient failures.
	RetryBaseDelay time.Duration
	// RetryMaxAttempts caps total attempts per item, first try included.
	RetryMaxAttempts int
	// RemoteTimeout bounds each individual remote call, retries included.
	RemoteTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Throttle:         500 * time.Millisecond,
		RetryBaseDelay:   time.Second,
		RetryMaxAttempts: 3,
		RemoteTimeout:    30 * time.Second,
	}
}

// Executor runs deployments and rollbacks. A per-instance in-memory guard
// rejects a second deployment to the same instance while one is in flight.
type Executor struct {
	preview     *PreviewService
	deployments deploymentrepo.Repository
	instances   instancerepo.Repository
	backups     BackupStore
	clients     remote.ClientFactory
	guard       *activeGuard
	logger      logging.Logger
	opts        Options

	now   func() time.Time
	newID func() string
	// sleep is swapped in tests so throttling does not slow them down.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(preview *PreviewService, deployments deploymentrepo.Repository, instances instancerepo.Repository, backups BackupStore, clients remote.ClientFactory, logger logging.Logger, opts Options) *Executor {
	return &Executor{
		preview:     preview,
		deployments: deployments,
		instances:   instances,
		backups:     backups,
		clients:     clients,
		guard:       newActiveGuard(),
		logger:      logger,
		opts:        opts,
		now:         time.Now,
		newID:       uuid.NewString,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deploy applies a template to an instance. The sequence is fixed: acquire
// the instance guard, preview, snapshot the remote state into a backup, then
// write item by item. Individual item failures never abort the run; the
// history row is finalized exactly once with the aggregate outcome.
func (e *Executor) Deploy(ctx context.Context, templateID, instanceID string) (*models.DeploymentHistory, error) {
	if err := e.guard.acquire(instanceID); err != nil {
		return nil, err
	}
	defer e.guard.release(instanceID)

	preview, err := e.preview.Preview(ctx, templateID, instanceID)
	if err != nil {
		return nil, err
	}
	if !preview.InstanceReachable {
		return nil, fmt.Errorf("instance %s: %w", instanceID, common.ErrorRemoteUnreachable)
	}
	if !preview.CanDeploy {
		return nil, fmt.Errorf("instance %s has %d unresolved conflicts", instanceID, preview.Summary.UnresolvedConflicts)
	}

	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	client := e.clients.ClientFor(inst)

	backup, err := e.snapshot(ctx, client, instanceID)
	if err != nil {
		return e.abort(ctx, templateID, instanceID, fmt.Errorf("creating pre-deployment backup: %w", err))
	}

	history := &models.DeploymentHistory{
		ID:         e.newID(),
		TemplateID: templateID,
		InstanceID: instanceID,
		StartedAt:  e.now(),
		BackupID:   &backup.ID,
	}
	if err := e.deployments.Create(ctx, history); err != nil {
		return nil, err
	}

	e.applyItems(ctx, client, history, preview.Items)

	history.Status = outcome(history)
	completed := e.now()
	history.CompletedAt = &completed
	if err := e.deployments.Finalize(ctx, history); err != nil {
		return nil, fmt.Errorf("finalizing deployment %s: %w", history.ID, err)
	}

	e.logger.Info(ctx, "deployment finished",
		"deployment_id", history.ID,
		"instance_id", instanceID,
		"status", string(history.Status),
		"created", history.CreatedCount,
		"updated", history.UpdatedCount,
		"failed", history.FailedCount,
	)
	return history, nil
}

// abort records a FAILED history for a run that died before any item could
// be attempted. Every deployment attempt leaves a result row, even one that
// never wrote anything.
func (e *Executor) abort(ctx context.Context, templateID, instanceID string, cause error) (*models.DeploymentHistory, error) {
	history := &models.DeploymentHistory{
		ID:         e.newID(),
		TemplateID: templateID,
		InstanceID: instanceID,
		StartedAt:  e.now(),
	}
	if err := e.deployments.Create(ctx, history); err != nil {
		return nil, err
	}

	history.Status = models.DeploymentFailed
	history.Errors = []string{cause.Error()}
	completed := e.now()
	history.CompletedAt = &completed
	if err := e.deployments.Finalize(ctx, history); err != nil {
		return nil, fmt.Errorf("finalizing deployment %s: %w", history.ID, err)
	}

	e.logger.Error(ctx, "deployment aborted",
		"deployment_id", history.ID, "instance_id", instanceID, "error", cause)
	return history, cause
}

// snapshot captures the remote custom-format state before any write.
func (e *Executor) snapshot(ctx context.Context, client remote.InstanceClient, instanceID string) (*models.Backup, error) {
	formats, err := client.GetCustomFormats(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(formats)
	if err != nil {
		return nil, err
	}
	return e.backups.CreateForInstance(ctx, instanceID, payload)
}

func (e *Executor) applyItems(ctx context.Context, client remote.InstanceClient, history *models.DeploymentHistory, items []PreviewItem) {
	for i := range items {
		item := &items[i]
		if i > 0 {
			if err := e.sleep(ctx, e.opts.Throttle); err != nil {
				e.recordFailure(history, item, err)
				continue
			}
		}

		remoteID, err := e.writeItem(ctx, client, item)
		if err != nil {
			e.recordFailure(history, item, err)
			e.logger.Error(ctx, "deploying custom format failed",
				"deployment_id", history.ID, "trash_id", item.TrashID, "error", err)
			continue
		}

		history.AppliedConfigs = append(history.AppliedConfigs, models.AppliedConfig{
			TrashID:  item.TrashID,
			Name:     item.Name,
			Action:   item.Action,
			RemoteID: remoteID,
		})
		if item.Action == ActionCreate {
			history.CreatedCount++
		} else {
			history.UpdatedCount++
		}
	}
}

func (e *Executor) recordFailure(history *models.DeploymentHistory, item *PreviewItem, err error) {
	history.FailedCount++
	history.FailedConfigs = append(history.FailedConfigs, models.FailedConfig{
		TrashID: item.TrashID,
		Name:    item.Name,
		Action:  item.Action,
		Error:   err.Error(),
	})
	history.Errors = append(history.Errors, fmt.Sprintf("%s: %s", item.Name, err.Error()))
}

// writeItem performs one create or update with exponential backoff. Only
// transient failures (429/5xx) are retried; auth and not-found errors fail
// the item on the first attempt.
func (e *Executor) writeItem(ctx context.Context, client remote.InstanceClient, item *PreviewItem) (int64, error) {
	itemCtx, cancel := context.WithTimeout(ctx, e.opts.RemoteTimeout)
	defer cancel()

	spec := &remote.CustomFormatSpec{Name: item.Name, Specifications: item.Spec}

	backoff := retry.WithMaxRetries(uint64(e.opts.RetryMaxAttempts-1), retry.NewExponential(e.opts.RetryBaseDelay))

	var remoteID int64
	err := retry.Do(itemCtx, backoff, func(ctx context.Context) error {
		var (
			cf  *remote.CustomFormat
			err error
		)
		if item.Action == ActionCreate {
			cf, err = client.CreateCustomFormat(ctx, spec)
		} else {
			cf, err = client.UpdateCustomFormat(ctx, item.RemoteID, spec)
		}
		if err != nil {
			if remote.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if cf != nil {
			remoteID = cf.ID
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if remoteID == 0 {
		remoteID = item.RemoteID
	}
	return remoteID, nil
}

// outcome maps per-item results onto the terminal status. A run where every
// attempted item failed is FAILED even though the run itself completed.
func outcome(h *models.DeploymentHistory) models.DeploymentStatus {
	switch {
	case h.FailedCount == 0:
		return models.DeploymentSuccess
	case h.CreatedCount+h.UpdatedCount > 0:
		return models.DeploymentPartialSuccess
	default:
		return models.DeploymentFailed
	}
}

// Rollback restores the remote state captured in the deployment's backup.
// It refuses to run from an expired backup and replays the snapshot through
// the same throttled, retried write path a deployment uses.
func (e *Executor) Rollback(ctx context.Context, deploymentID string) (*models.DeploymentHistory, error) {
	history, err := e.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if history.BackupID == nil {
		return nil, fmt.Errorf("deployment %s: %w", deploymentID, common.ErrorNotFound)
	}

	if err := e.guard.acquire(history.InstanceID); err != nil {
		return nil, err
	}
	defer e.guard.release(history.InstanceID)

	backup, err := e.backups.GetWithPayload(ctx, *history.BackupID)
	if err != nil {
		return nil, err
	}
	if backup.Expired(e.now()) {
		return nil, fmt.Errorf("backup %s: %w", backup.ID, common.ErrorBackupExpired)
	}

	var snapshot []remote.CustomFormat
	if err := json.Unmarshal(backup.Payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding backup %s: %w", backup.ID, err)
	}

	inst, err := e.instances.GetByID(ctx, history.InstanceID)
	if err != nil {
		return nil, err
	}
	client := e.clients.ClientFor(inst)

	if _, err := client.GetSystemStatus(ctx); err != nil {
		return nil, fmt.Errorf("instance %s: %w", history.InstanceID, common.ErrorRemoteUnreachable)
	}

	items, err := e.rollbackPlan(ctx, client, snapshot)
	if err != nil {
		return nil, err
	}

	restore := &models.DeploymentHistory{
		ID:         e.newID(),
		TemplateID: history.TemplateID,
		InstanceID: history.InstanceID,
		StartedAt:  e.now(),
		BackupID:   history.BackupID,
	}
	if err := e.deployments.Create(ctx, restore); err != nil {
		return nil, err
	}

	e.applyItems(ctx, client, restore, items)

	restore.Status = outcome(restore)
	completed := e.now()
	restore.CompletedAt = &completed
	if err := e.deployments.Finalize(ctx, restore); err != nil {
		return nil, fmt.Errorf("finalizing rollback %s: %w", restore.ID, err)
	}

	if restore.Status != models.DeploymentFailed {
		if err := e.deployments.MarkRolledBack(ctx, deploymentID, e.now()); err != nil {
			return nil, err
		}
	}

	e.logger.Info(ctx, "rollback finished",
		"deployment_id", deploymentID,
		"restore_id", restore.ID,
		"status", string(restore.Status),
	)
	return restore, nil
}

// rollbackPlan turns a snapshot into write items against the current remote
// state. Formats that no longer exist remotely are re-created; formats that
// still exist are overwritten with their snapshotted shape. Formats added
// after the snapshot stay untouched, restore is additive like deploy.
func (e *Executor) rollbackPlan(ctx context.Context, client remote.InstanceClient, snapshot []remote.CustomFormat) ([]PreviewItem, error) {
	current, err := client.GetCustomFormats(ctx)
	if err != nil {
		return nil, err
	}
	byID := map[int64]struct{}{}
	byName := map[string]int64{}
	for _, cf := range current {
		byID[cf.ID] = struct{}{}
		byName[cf.Name] = cf.ID
	}

	items := make([]PreviewItem, 0, len(snapshot))
	for _, cf := range snapshot {
		specs, err := json.Marshal(cf.Specifications)
		if err != nil {
			return nil, err
		}
		item := PreviewItem{Name: cf.Name, Action: ActionCreate, Spec: specs}
		if _, ok := byID[cf.ID]; ok && cf.ID != 0 {
			item.Action = ActionUpdate
			item.RemoteID = cf.ID
		} else if id, ok := byName[cf.Name]; ok {
			item.Action = ActionUpdate
			item.RemoteID = id
		}
		if tid, _ := ExtractTrashID(&cf); tid != "" {
			item.TrashID = tid
		}
		items = append(items, item)
	}
	return items, nil
}
