package apierr

// ============================================================================
// Error Codes
// ============================================================================

// The leading digit of a code selects its Category (see Classify).
const (
	// Validation (any prefix outside 1-5)
	CodeInvalidFormat   = "0001"
	CodeMissingField    = "0002"
	CodeUnsupportedType = "0003"

	// Authentication (1xxx)
	CodeInvalidCredentials  = "1001"
	CodeTokenExpired        = "1002"
	CodeInvalidToken        = "1003"
	CodeInvalidRefreshToken = "1004"
	CodeSessionExpired      = "1005"
	CodeAccountLocked       = "1006"
	CodeInvalid2FA          = "1007"

	// Verification (2xxx)
	CodeInvalidCode            = "2001"
	CodeExpiredCode            = "2002"
	CodeTooManyAttempts        = "2003"
	CodeAlreadyVerified        = "2004"
	CodeInvalidDocument        = "2005"
	CodeVerificationFailed     = "2006"
	CodeInsufficientTrustLevel = "2007"

	// NFT and tokens (3xxx)
	CodeInvalidContract = "3001"
	CodeInvalidNFTToken = "3002"
	CodeTransferFailed  = "3003"
	CodeMintFailed      = "3004"
	CodeBurnFailed      = "3005"
	CodeAlreadyMinted   = "3006"

	// Game (4xxx)
	CodeInvalidAction         = "4001"
	CodeInsufficientResources = "4002"
	CodeCooldownActive        = "4003"
	CodeQuestUnavailable      = "4004"
	CodeInvalidGameState      = "4005"

	// System (5xxx)
	CodeInternalError      = "5001"
	CodeDatabaseError      = "5002"
	CodeCacheError         = "5003"
	CodeRateLimitExceeded  = "5004"
	CodeServiceUnavailable = "5005"
)

var defaultMessages = map[string]string{
	CodeInvalidFormat:   "Invalid format",
	CodeMissingField:    "Missing required field",
	CodeUnsupportedType: "Unsupported verification type",

	CodeInvalidCredentials:  "Invalid username or password",
	CodeTokenExpired:        "Authentication token has expired",
	CodeInvalidToken:        "Invalid authentication token",
	CodeInvalidRefreshToken: "Invalid refresh token",
	CodeSessionExpired:      "Session has expired",
	CodeAccountLocked:       "Account is locked",
	CodeInvalid2FA:          "Invalid 2FA code",

	CodeInvalidCode:            "Invalid verification code",
	CodeExpiredCode:            "Verification code has expired",
	CodeTooManyAttempts:        "Too many verification attempts",
	CodeAlreadyVerified:        "Already verified",
	CodeInvalidDocument:        "Invalid document provided",
	CodeVerificationFailed:     "Verification process failed",
	CodeInsufficientTrustLevel: "Insufficient trust level for this operation",

	CodeInvalidContract: "Invalid NFT contract address",
	CodeInvalidNFTToken: "Invalid NFT token ID",
	CodeTransferFailed:  "NFT transfer failed",
	CodeMintFailed:      "NFT minting failed",
	CodeBurnFailed:      "NFT burning failed",
	CodeAlreadyMinted:   "NFT already minted",

	CodeInvalidAction:         "Invalid game action",
	CodeInsufficientResources: "Insufficient resources",
	CodeCooldownActive:        "Action is on cooldown",
	CodeQuestUnavailable:      "Quest is not available",
	CodeInvalidGameState:      "Invalid game state",

	CodeInternalError:      "Internal server error",
	CodeDatabaseError:      "Database error",
	CodeCacheError:         "Cache error",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeServiceUnavailable: "Service is temporarily unavailable",
}

// DefaultMessage returns the catalog message for code, or "Unknown error".
func DefaultMessage(code string) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}
