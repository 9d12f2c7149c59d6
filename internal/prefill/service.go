package prefill

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"invoicedesk/internal/logger"
)

// FieldCompleter fills the missing fields of a draft from the PDF bytes.
type FieldCompleter interface {
	Complete(ctx context.Context, pdf []byte, d *Draft) error
}

// Service runs structured extraction followed, when fields are still
// missing, by completion. Either stage may be nil.
type Service struct {
	extractor Extractor
	completer FieldCompleter
	log       zerolog.Logger
}

// NewService combines an extractor and a completer.
func NewService(extractor Extractor, completer FieldCompleter) *Service {
	return &Service{
		extractor: extractor,
		completer: completer,
		log:       logger.WithComponent("prefill"),
	}
}

// Extract implements Extractor. A completion failure is logged and the
// partial draft is returned.
func (s *Service) Extract(ctx context.Context, pdf io.Reader) (*Draft, error) {
	const op = "Extract"

	data, err := readPDF(op, pdf)
	if err != nil {
		return nil, err
	}
	if s.extractor == nil && s.completer == nil {
		return nil, WrapError(op, ErrInvalidConfiguration, "no extraction backend configured")
	}

	draft := &Draft{}
	if s.extractor != nil {
		draft, err = extractBytes(ctx, s.extractor, data)
		if err != nil {
			if s.completer == nil {
				return nil, err
			}
			s.log.Warn().Err(err).Msg("Structured extraction failed, falling back to completion")
			draft = &Draft{}
		}
	}

	if s.completer != nil && len(draft.Missing()) > 0 {
		if err := s.completer.Complete(ctx, data, draft); err != nil {
			if ctx.Err() != nil {
				return nil, WrapError(op, ErrContextCanceled, ctx.Err().Error())
			}
			s.log.Warn().Err(err).Strs("missing", draft.Missing()).Msg("Field completion failed, returning partial draft")
		}
	}
	return draft, nil
}
