package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldPhoneNumber   = "phone_number"
	fieldPhoneVerified = "phone_verified"
	fieldUpdatedAt     = "updated_at"
	fieldExpiresAt     = "expires_at"
)
