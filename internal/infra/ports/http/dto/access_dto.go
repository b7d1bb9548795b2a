package dto

type DecideJoinRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type VerifyKeyRequest struct {
	Key string `json:"key" validate:"required,max=72"`
}
