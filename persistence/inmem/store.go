package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
)

var _ persistence.WorkflowStore = new(inMemWorkflowStore)

type inMemWorkflowStore struct {
	mu      sync.Mutex
	records map[string]model.WorkflowRecord
	active  map[string]string
}

func NewInMemWorkflowStore() *inMemWorkflowStore {
	return &inMemWorkflowStore{
		records: make(map[string]model.WorkflowRecord),
		active:  make(map[string]string),
	}
}

func activeKey(userId string, orderNumber string, requestType model.RequestType) string {
	return userId + ":" + orderNumber + ":" + string(requestType)
}

func (s *inMemWorkflowStore) Create(wf *model.WorkflowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := activeKey(wf.UserId, wf.OrderNumber, wf.RequestType)
	if existingId, ok := s.active[key]; ok {
		return model.WorkflowActiveError{
			ExistingId:  existingId,
			OrderNumber: wf.OrderNumber,
			RequestType: wf.RequestType,
		}
	}
	wf.Version = 1
	s.records[wf.Id] = *wf
	s.active[key] = wf.Id
	return nil
}

func (s *inMemWorkflowStore) Get(id string) (*model.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, persistence.NotFoundError{Id: id}
	}
	copy := rec
	return &copy, nil
}

func (s *inMemWorkflowStore) FindActive(userId string, orderNumber string, requestType model.RequestType) (*model.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[activeKey(userId, orderNumber, requestType)]
	if !ok {
		return nil, persistence.NotFoundError{Id: orderNumber}
	}
	rec := s.records[id]
	copy := rec
	return &copy, nil
}

func (s *inMemWorkflowStore) UpdateCAS(wf *model.WorkflowRecord, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[wf.Id]
	if !ok {
		return persistence.NotFoundError{Id: wf.Id}
	}
	if current.Version != expectedVersion {
		return persistence.VersionConflictError{Id: wf.Id, Expected: expectedVersion}
	}
	wf.Version = expectedVersion + 1
	s.records[wf.Id] = *wf
	if wf.IsTerminal() {
		delete(s.active, activeKey(wf.UserId, wf.OrderNumber, wf.RequestType))
	}
	return nil
}

func (s *inMemWorkflowStore) PollExpiredAwaiting(now time.Time, limit int) ([]*model.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*model.WorkflowRecord
	for _, rec := range s.records {
		if rec.Status != model.STATUS_AWAITING_CONFIRMATION {
			continue
		}
		if rec.AwaitingDeadline == nil || rec.AwaitingDeadline.After(now) {
			continue
		}
		copy := rec
		expired = append(expired, &copy)
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].AwaitingDeadline.Before(*expired[j].AwaitingDeadline)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *inMemWorkflowStore) ListByStatus(status model.WorkflowStatus) ([]*model.WorkflowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.WorkflowRecord
	for _, rec := range s.records {
		if rec.Status != status {
			continue
		}
		copy := rec
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
