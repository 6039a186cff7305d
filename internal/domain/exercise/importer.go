package exercise

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"lapizarra/backend/internal/sheet"
	"lapizarra/backend/internal/utils"

	"github.com/rs/zerolog/log"
)

type ImportResult struct {
	Imported int              `json:"imported"`
	IDs      []string         `json:"ids"`
	Errors   []sheet.RowError `json:"errors"`
}

// ParsedRow is a validated spreadsheet row.
type ParsedRow struct {
	Line  int
	Input Input
}

// ParseRows validates spreadsheet rows. Admin imports default to public,
// official exercises; coach imports default to private.
func ParseRows(rows []sheet.Row, admin bool) ([]ParsedRow, []sheet.RowError) {
	valid := []ParsedRow{}
	errs := []sheet.RowError{}
	for _, row := range rows {
		in := Input{
			Name:        cell(row, "name", "nombre"),
			Description: cell(row, "description", "descripcion"),
			Phase:       cell(row, "phase", "fase"),
			Category:    cell(row, "category", "categoria"),
			AgeGroups:   utils.SplitList(cell(row, "ageGroups", "age groups", "edades")),
			Players:     cell(row, "players", "jugadores"),
			Materials:   utils.SplitList(cell(row, "materials", "material", "materiales")),
			MediaURL:    cell(row, "mediaUrl", "media", "video"),
			Visibility:  cell(row, "visibility", "visibilidad"),
			Official:    admin,
		}
		if in.Visibility == "" && admin {
			in.Visibility = VisibilityPublic
		}
		dur := cell(row, "duration", "durationMinutes", "duracion")
		n, err := strconv.Atoi(dur)
		if err != nil {
			errs = append(errs, sheet.RowError{Line: row.Line, Reason: fmt.Sprintf("invalid duration %q", dur)})
			continue
		}
		in.DurationMinutes = n
		in.Normalize()
		if err := in.Validate(); err != nil {
			errs = append(errs, sheet.RowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		valid = append(valid, ParsedRow{Line: row.Line, Input: in})
	}
	return valid, errs
}

func cell(row sheet.Row, keys ...string) string {
	for _, k := range keys {
		if v := row.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// Import reads an .xlsx library and writes every valid row. Private rows
// beyond the caller's plan allowance are reported as row errors.
func (s *Service) Import(ctx context.Context, uid string, admin bool, r io.Reader) (*ImportResult, error) {
	rows, err := sheet.ReadRows(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	parsed, rowErrs := ParseRows(rows, admin)

	allowance := -1
	if s.limits != nil && !admin {
		if allowance, err = s.limits.Remaining(ctx, uid, ResourcePrivate); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	docs := make([]Exercise, 0, len(parsed))
	for _, p := range parsed {
		if p.Input.Visibility == VisibilityPrivate && allowance >= 0 {
			if allowance == 0 {
				rowErrs = append(rowErrs, sheet.RowError{Line: p.Line, Reason: "private exercise limit reached for your plan"})
				continue
			}
			allowance--
		}
		docs = append(docs, p.Input.build(uid, now))
	}

	res := &ImportResult{IDs: []string{}, Errors: rowErrs}
	created, err := s.repo.CreateMany(ctx, docs)
	for _, ex := range created {
		res.IDs = append(res.IDs, ex.ID)
	}
	res.Imported = len(created)
	if err != nil {
		log.Error().Err(err).Str("uid", uid).Int("written", len(created)).Msg("exercise import aborted")
		return res, err
	}
	log.Info().Str("uid", uid).Int("imported", res.Imported).Int("rejected", len(rowErrs)).Msg("exercise import")
	return res, nil
}
