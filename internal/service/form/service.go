// Package form validates the appointment form on the landing page.
package form

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	MsgIncomplete   = "请填写完整的预约信息"
	MsgInvalidEmail = "请输入有效的电子邮箱地址"
	MsgSubmitted    = "预约信息已提交，我们的招生顾问将尽快与您联系！"
)

var (
	ErrIncomplete   = errors.New(MsgIncomplete)
	ErrInvalidEmail = errors.New(MsgInvalidEmail)
)

// 空白按浏览器的 \s 处理：Go 的 \s 只含 ASCII，补上 \v、Unicode 空格与 BOM
var emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// Appointment 是预约表单提交的内容。
type Appointment struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"required,contact_email"`
	Program string `json:"program" validate:"required"`
}

// Service validates submissions. Nothing is stored; accepted forms are logged.
type Service struct {
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService registers the contact_email rule on a fresh validator.
func NewService(logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	return &Service{validate: v, logger: logger}, nil
}

// Submit 校验表单：任一字段为空先报不完整，再校验邮箱格式。
func (s *Service) Submit(a Appointment) (string, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Email = strings.TrimSpace(a.Email)
	a.Program = strings.TrimSpace(a.Program)

	if err := s.validate.Struct(a); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return "", err
		}
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" {
				return "", ErrIncomplete
			}
		}
		return "", ErrInvalidEmail
	}

	s.logger.Info("appointment submitted", zap.String("program", a.Program))
	return MsgSubmitted, nil
}
