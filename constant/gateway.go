package constant

// URLConstants defines licensing service endpoint URLs
const (
	// ProdLicenseGatewayBaseURL is the production licensing service URL
	ProdLicenseGatewayBaseURL = "https://license.artemislabs.io"
	// DevLicenseGatewayBaseURL is the development licensing service URL
	DevLicenseGatewayBaseURL = "https://license.dev.artemislabs.io"
)
