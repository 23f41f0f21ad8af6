package synchronizer

import "bansync/internal/models"

// ProblemClass says why a record needs attention on a platform.
type ProblemClass int

const (
	ClassNone ProblemClass = iota
	ClassNeedsPost
	ClassNeedsStatusUpdate
)

func (c ProblemClass) String() string {
	switch c {
	case ClassNeedsPost:
		return "needs_post"
	case ClassNeedsStatusUpdate:
		return "needs_status_update"
	default:
		return "none"
	}
}

// Classify decides what, if anything, platform p still has to publish for
// record. A missing post field counts as absent; an unknown status never
// matches.
func Classify(record *models.BanRecord, p models.Platform) ProblemClass {
	if record == nil {
		return ClassNone
	}
	if _, ok := p.PostColumn(); !ok {
		return ClassNone
	}

	post := record.Post(p)
	switch {
	case record.Status == models.DecisionPending && post == nil:
		return ClassNeedsPost
	case record.Status.Settled() && post != nil && *post > models.NoPost:
		return ClassNeedsStatusUpdate
	default:
		return ClassNone
	}
}
