package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/blackwell-systems/swupdate/internal/program"
)

var validate = validator.New()

// Warning is a validation problem that Validate corrected in place.
type Warning struct {
	Field string
	Msg   string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Msg)
}

// Validate checks the config and returns every problem found. Problems of
// type *Warning have already been corrected and can be logged; any other
// error means the config cannot be used (see Fatal).
func (c *Config) Validate() []error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%s: invalid value %v (%s)", fe.Namespace(), fe.Value(), rule(fe)))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if _, err := c.Execution.TimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("execution.timeout: %w", err))
	}

	l := &c.OS.Linux
	errs = appendWarning(errs, checkPreferred("os.linux.arch.preferred_official", program.Arch, &l.Arch.PreferredOfficial))
	errs = appendWarning(errs, checkPreferred("os.linux.arch.preferred_aur", program.AUR, &l.Arch.PreferredAUR))
	errs = appendWarning(errs, checkPreferred("os.linux.deb.preferred", program.Deb, &l.Deb.Preferred))
	errs = appendWarning(errs, checkPreferred("os.linux.rpm.preferred", program.RPM, &l.RPM.Preferred))

	return errs
}

// Fatal joins the errors that are not warnings, or returns nil.
func Fatal(errs []error) error {
	var fatal []error
	for _, err := range errs {
		var w *Warning
		if !errors.As(err, &w) {
			fatal = append(fatal, err)
		}
	}
	return errors.Join(fatal...)
}

func rule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func appendWarning(errs []error, w *Warning) []error {
	if w == nil {
		return errs
	}
	return append(errs, w)
}

// checkPreferred clears a preferred program that the family does not know.
func checkPreferred(field string, family program.Family, preferred *string) *Warning {
	if *preferred == "" {
		return nil
	}
	table, ok := program.Lookup(family)
	if !ok {
		return nil
	}
	if _, ok := table.Find(program.ID(*preferred)); ok {
		return nil
	}

	w := &Warning{
		Field: field,
		Msg:   fmt.Sprintf("unknown program %q (known: %v), ignoring preference", *preferred, table.IDs()),
	}
	*preferred = ""
	return w
}
