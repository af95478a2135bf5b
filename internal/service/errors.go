package service

// ServiceError represents a business-rule failure. Code is one of the
// model.ErrCode constants; handlers map it to an HTTP status.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}
