package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"github.com/remyhfb/delight-desk-v2-sub006/util"
	"go.uber.org/zap"
)

const WORKFLOW_KEY string = "WF"
const ACTIVE_KEY string = "ACTIVE"
const AWAITING_KEY string = "AWAITING"
const STATUS_KEY string = "STATUS"

var _ persistence.WorkflowStore = new(redisWorkflowStore)

// redisWorkflowStore keeps one json record per workflow plus three
// indexes: the active-slot key enforcing one non-terminal workflow per
// (user, order, request type), a sorted set of awaiting-confirmation
// deadlines for the escalation scheduler, and per-status sets for the
// operator queue. Compare-and-swap is done with WATCH on the record
// key.
type redisWorkflowStore struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.WorkflowRecord]
}

func NewRedisWorkflowStore(conf Config, encoderDecoder util.EncoderDecoder[model.WorkflowRecord]) *redisWorkflowStore {
	return &redisWorkflowStore{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: encoderDecoder,
	}
}

func (rs *redisWorkflowStore) recordKey(id string) string {
	return rs.getNamespaceKey(WORKFLOW_KEY, id)
}

func (rs *redisWorkflowStore) activeKey(userId string, orderNumber string, requestType model.RequestType) string {
	return rs.getNamespaceKey(ACTIVE_KEY, userId, orderNumber, string(requestType))
}

func (rs *redisWorkflowStore) statusKey(status model.WorkflowStatus) string {
	return rs.getNamespaceKey(STATUS_KEY, string(status))
}

func (rs *redisWorkflowStore) Create(wf *model.WorkflowRecord) error {
	ctx := context.Background()
	activeKey := rs.activeKey(wf.UserId, wf.OrderNumber, wf.RequestType)
	wf.Version = 1
	data, err := rs.encoderDecoder.Encode(*wf)
	if err != nil {
		return err
	}
	claimed, err := rs.redisClient.SetNX(ctx, activeKey, wf.Id, 0).Result()
	if err != nil {
		logger.Error("error claiming active workflow slot", zap.String("order", wf.OrderNumber), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if !claimed {
		existingId, err := rs.redisClient.Get(ctx, activeKey).Result()
		if err != nil && !errors.Is(err, rd.Nil) {
			return persistence.StorageLayerError{Message: err.Error()}
		}
		var notFound persistence.NotFoundError
		if _, err := rs.Get(existingId); err == nil {
			return model.WorkflowActiveError{
				ExistingId:  existingId,
				OrderNumber: wf.OrderNumber,
				RequestType: wf.RequestType,
			}
		} else if !errors.As(err, &notFound) {
			return err
		}
		// the slot points at a record that was never written, a crash
		// between claim and write left it dangling. Take it over.
		logger.Info("reclaiming dangling active workflow slot", zap.String("order", wf.OrderNumber), zap.String("danglingId", existingId))
		if err := rs.redisClient.Set(ctx, activeKey, wf.Id, 0).Err(); err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
	}
	_, err = rs.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.Set(ctx, rs.recordKey(wf.Id), string(data), 0)
		pipe.SAdd(ctx, rs.statusKey(wf.Status), wf.Id)
		return nil
	})
	if err != nil {
		logger.Error("error saving workflow record", zap.String("id", wf.Id), zap.Error(err))
		// release the claim so a retry is not locked out by a slot
		// with no record behind it
		if delErr := rs.redisClient.Del(ctx, activeKey).Err(); delErr != nil {
			logger.Error("error releasing active workflow slot", zap.String("order", wf.OrderNumber), zap.Error(delErr))
		}
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisWorkflowStore) Get(id string) (*model.WorkflowRecord, error) {
	ctx := context.Background()
	data, err := rs.redisClient.Get(ctx, rs.recordKey(id)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Id: id}
		}
		logger.Error("error reading workflow record", zap.String("id", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rs.encoderDecoder.Decode([]byte(data))
}

func (rs *redisWorkflowStore) FindActive(userId string, orderNumber string, requestType model.RequestType) (*model.WorkflowRecord, error) {
	ctx := context.Background()
	id, err := rs.redisClient.Get(ctx, rs.activeKey(userId, orderNumber, requestType)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Id: orderNumber}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rs.Get(id)
}

func (rs *redisWorkflowStore) UpdateCAS(wf *model.WorkflowRecord, expectedVersion uint64) error {
	ctx := context.Background()
	key := rs.recordKey(wf.Id)
	err := rs.redisClient.Watch(ctx, func(tx *rd.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, rd.Nil) {
				return persistence.NotFoundError{Id: wf.Id}
			}
			return persistence.StorageLayerError{Message: err.Error()}
		}
		current, err := rs.encoderDecoder.Decode([]byte(data))
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return persistence.VersionConflictError{Id: wf.Id, Expected: expectedVersion}
		}
		wf.Version = expectedVersion + 1
		encoded, err := rs.encoderDecoder.Encode(*wf)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Set(ctx, key, string(encoded), 0)
			if current.Status != wf.Status {
				pipe.SRem(ctx, rs.statusKey(current.Status), wf.Id)
				pipe.SAdd(ctx, rs.statusKey(wf.Status), wf.Id)
			}
			awaitingKey := rs.getNamespaceKey(AWAITING_KEY)
			if wf.Status == model.STATUS_AWAITING_CONFIRMATION && wf.AwaitingDeadline != nil {
				pipe.ZAdd(ctx, awaitingKey, rd.Z{
					Score:  float64(wf.AwaitingDeadline.Unix()),
					Member: wf.Id,
				})
			} else {
				pipe.ZRem(ctx, awaitingKey, wf.Id)
			}
			if wf.IsTerminal() {
				pipe.Del(ctx, rs.activeKey(wf.UserId, wf.OrderNumber, wf.RequestType))
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, rd.TxFailedErr) {
			return persistence.VersionConflictError{Id: wf.Id, Expected: expectedVersion}
		}
		return err
	}
	return nil
}

func (rs *redisWorkflowStore) PollExpiredAwaiting(now time.Time, limit int) ([]*model.WorkflowRecord, error) {
	ctx := context.Background()
	ids, err := rs.redisClient.ZRangeByScore(ctx, rs.getNamespaceKey(AWAITING_KEY), &rd.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		logger.Error("error polling awaiting deadlines", zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var out []*model.WorkflowRecord
	for _, id := range ids {
		wf, err := rs.Get(id)
		if err != nil {
			logger.Error("error loading awaiting workflow", zap.String("id", id), zap.Error(err))
			continue
		}
		out = append(out, wf)
	}
	return out, nil
}

func (rs *redisWorkflowStore) ListByStatus(status model.WorkflowStatus) ([]*model.WorkflowRecord, error) {
	ctx := context.Background()
	ids, err := rs.redisClient.SMembers(ctx, rs.statusKey(status)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var out []*model.WorkflowRecord
	for _, id := range ids {
		wf, err := rs.Get(id)
		if err != nil {
			continue
		}
		out = append(out, wf)
	}
	return out, nil
}
