package analytics

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/opensource-finance/salespulse/internal/domain"
)

// Rejection reasons returned to clients.
const (
	MsgDatesRequired = "Start and end dates are required"
	MsgInvalidDate   = "Invalid date format"
	MsgStartAfterEnd = "Start date must be before end date"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type rangeQuery struct {
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
}

// ParseDateRange validates a pair of YYYY-MM-DD strings and returns the
// inclusive range they describe. Equal dates are accepted. Failures are
// *domain.ValidationError.
func ParseDateRange(start, end string) (domain.DateRange, error) {
	q := rangeQuery{StartDate: start, EndDate: end}

	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.DateRange{}, err
		}
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return domain.DateRange{}, &domain.ValidationError{Message: MsgDatesRequired}
			}
		}
		return domain.DateRange{}, &domain.ValidationError{Field: fieldName(verrs[0]), Message: MsgInvalidDate}
	}

	rng := domain.DateRange{}
	var err error
	if rng.Start, err = domain.ParseDate(start); err != nil {
		return domain.DateRange{}, &domain.ValidationError{Field: "startDate", Message: MsgInvalidDate}
	}
	if rng.End, err = domain.ParseDate(end); err != nil {
		return domain.DateRange{}, &domain.ValidationError{Field: "endDate", Message: MsgInvalidDate}
	}

	if rng.Start.After(rng.End) {
		return domain.DateRange{}, &domain.ValidationError{Message: MsgStartAfterEnd}
	}
	return rng, nil
}

func fieldName(fe validator.FieldError) string {
	if fe.Field() == "EndDate" {
		return "endDate"
	}
	return "startDate"
}
