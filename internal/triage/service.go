package triage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
)

// Claims is the graph surface triage needs
type Claims interface {
	GetClaim(ctx context.Context, id string) (*model.Claim, error)
	CountVulnerable(ctx context.Context) (int, error)
}

// Queue produces the ranked remediation queue
type Queue interface {
	Vulnerable(ctx context.Context, limit, offset int) ([]model.VulnerabilityRecord, error)
}

// ActionRequest is an editor's remediation
type ActionRequest struct {
	ClaimID      string `json:"claim_id"`
	Action       string `json:"action"`
	Editor       string `json:"editor,omitempty"`
	PreviousText string `json:"previous_text,omitempty"`
	NewText      string `json:"new_text,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Service records remediation actions and reports on them
type Service struct {
	log     *Store
	claims  Claims
	queue   Queue
	timeout time.Duration
	now     func() time.Time
}

// NewService wires the log to the graph and the ranked queue
func NewService(log *Store, claims Claims, queue Queue, timeout time.Duration) *Service {
	return &Service{
		log:     log,
		claims:  claims,
		queue:   queue,
		timeout: timeout,
		now:     time.Now,
	}
}

// Queue returns a page of the remediation queue
func (s *Service) Queue(ctx context.Context, limit, offset int) ([]model.VulnerabilityRecord, error) {
	return s.queue.Vulnerable(ctx, limit, offset)
}

// Record stores an action against an existing claim. The claim itself is not modified.
func (s *Service) Record(ctx context.Context, req ActionRequest) (*model.Remediation, error) {
	action, err := model.ParseRemediationAction(strings.ToLower(strings.TrimSpace(req.Action)))
	if err != nil {
		return nil, err
	}
	if req.ClaimID == "" {
		return nil, model.Invalid("claim_id is required")
	}

	claim, err := s.getClaim(ctx, req.ClaimID)
	if err != nil {
		return nil, err
	}

	previous := req.PreviousText
	if action == model.ActionUpdated && previous == "" {
		previous = claim.Text
	}

	r := model.Remediation{
		ID:           uuid.NewString(),
		ClaimID:      claim.ID,
		Action:       action,
		Editor:       req.Editor,
		PreviousText: previous,
		NewText:      req.NewText,
		Note:         req.Note,
		Timestamp:    s.now().UTC(),
	}
	if err := s.log.Put(r); err != nil {
		return nil, model.External("triage log", err)
	}

	logging.Info("remediation recorded", "id", r.ID, "claim", r.ClaimID, "action", r.Action)
	return &r, nil
}

// Get returns a remediation by ID
func (s *Service) Get(id string) (*model.Remediation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.Invalid("remediation id %q is not a UUID", id)
	}
	return s.log.Get(id)
}

// History returns a claim's remediations, newest first. Unknown claims have an empty history.
func (s *Service) History(claimID string) ([]model.Remediation, error) {
	history, err := s.log.History(claimID)
	if err != nil {
		return nil, model.External("triage log", err)
	}
	if history == nil {
		history = []model.Remediation{}
	}
	return history, nil
}

// Stats summarizes the log and the current vulnerable population
func (s *Service) Stats(ctx context.Context) (*model.TriageStats, error) {
	counts, total, err := s.log.CountByAction()
	if err != nil {
		return nil, model.External("triage log", err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	vulnerable, err := s.claims.CountVulnerable(ctx)
	if err != nil {
		return nil, model.External("graph store", err)
	}

	return &model.TriageStats{
		TotalRemediations:     total,
		RemediationsByAction:  counts,
		VulnerableClaimsCount: vulnerable,
		Timestamp:             s.now().UTC(),
	}, nil
}

func (s *Service) getClaim(ctx context.Context, id string) (*model.Claim, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	claim, err := s.claims.GetClaim(ctx, id)
	if err != nil {
		return nil, model.External("graph store", err)
	}
	if claim == nil {
		return nil, model.NotFound("claim", id)
	}
	return claim, nil
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
