// Package lookup resolves human-typed fragments ("4404", "Black Panther")
// to canonical loads and drivers within a single tenant.
package lookup

import (
	"fmt"
	"strings"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"gorm.io/gorm"
)

// Resolution kinds. Multiple plausible matches never auto-select; the
// orchestrator surfaces Ambiguous as a clarifying question.
const (
	KindUnique    = "unique"
	KindAmbiguous = "ambiguous"
	KindNotFound  = "not_found"
)

// maxCandidates caps the number of candidates reported on an ambiguous match.
const maxCandidates = 5

// LoadResolution is the result of a load reference lookup.
type LoadResolution struct {
	Kind       string
	Load       *models.Load
	Candidates []models.Load
}

// DriverResolution is the result of a driver name lookup.
type DriverResolution struct {
	Kind       string
	Driver     *models.Driver
	Candidates []models.Driver
}

// Service performs tenant-scoped entity lookups. Every query carries the
// tenant id structurally; a fragment can never match another tenant's rows.
type Service struct {
	db *gorm.DB
}

// NewService creates a lookup Service.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("lookup: service: db is required")
	}
	return &Service{db: db}, nil
}

// stripNonDigits removes every non-digit rune from s.
func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindLoadByReference resolves a reference fragment to a load. It tries a
// case-insensitive substring match on the reference code first, then a
// retry with all non-digit characters stripped from the fragment (so a
// driver typing "4404" finds "LD-2025-4404"). Ties order most recent first.
func (s *Service) FindLoadByReference(tenantID, fragment string) (LoadResolution, error) {
	fragment = strings.TrimSpace(fragment)
	if tenantID == "" || fragment == "" {
		return LoadResolution{Kind: KindNotFound}, nil
	}

	matches, err := s.loadSubstring(tenantID, fragment)
	if err != nil {
		return LoadResolution{}, err
	}
	if len(matches) == 0 {
		digits := stripNonDigits(fragment)
		if digits != "" && digits != fragment {
			matches, err = s.loadSubstring(tenantID, digits)
			if err != nil {
				return LoadResolution{}, err
			}
		}
	}

	switch len(matches) {
	case 0:
		return LoadResolution{Kind: KindNotFound}, nil
	case 1:
		return LoadResolution{Kind: KindUnique, Load: &matches[0]}, nil
	default:
		return LoadResolution{Kind: KindAmbiguous, Candidates: matches}, nil
	}
}

func (s *Service) loadSubstring(tenantID, fragment string) ([]models.Load, error) {
	var loads []models.Load
	pattern := "%" + strings.ToLower(fragment) + "%"
	err := s.db.Where("tenant_id = ? AND lower(reference_code) LIKE ?", tenantID, pattern).
		Order("created_at DESC").Limit(maxCandidates).Find(&loads).Error
	if err != nil {
		return nil, fmt.Errorf("lookup: load by reference %q: %w", fragment, err)
	}
	return loads, nil
}

// FindDriverByName resolves a name fragment to a driver. It tries a
// case-insensitive substring match on the full name first; on zero results
// it splits the fragment into tokens and requires each token to match
// independently (handles "Smith, John" and partial first/last input).
func (s *Service) FindDriverByName(tenantID, fragment string) (DriverResolution, error) {
	fragment = strings.TrimSpace(fragment)
	if tenantID == "" || fragment == "" {
		return DriverResolution{Kind: KindNotFound}, nil
	}

	matches, err := s.driverSubstring(tenantID, []string{fragment})
	if err != nil {
		return DriverResolution{}, err
	}
	if len(matches) == 0 {
		tokens := strings.Fields(strings.ReplaceAll(fragment, ",", " "))
		if len(tokens) > 1 {
			matches, err = s.driverSubstring(tenantID, tokens)
			if err != nil {
				return DriverResolution{}, err
			}
		}
	}

	switch len(matches) {
	case 0:
		return DriverResolution{Kind: KindNotFound}, nil
	case 1:
		return DriverResolution{Kind: KindUnique, Driver: &matches[0]}, nil
	default:
		return DriverResolution{Kind: KindAmbiguous, Candidates: matches}, nil
	}
}

func (s *Service) driverSubstring(tenantID string, tokens []string) ([]models.Driver, error) {
	q := s.db.Where("tenant_id = ?", tenantID)
	for _, tok := range tokens {
		q = q.Where("lower(name) LIKE ?", "%"+strings.ToLower(tok)+"%")
	}
	var drivers []models.Driver
	if err := q.Order("created_at DESC").Limit(maxCandidates).Find(&drivers).Error; err != nil {
		return nil, fmt.Errorf("lookup: driver by name %v: %w", tokens, err)
	}
	return drivers, nil
}
