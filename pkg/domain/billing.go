package domain

// PaymentMethodType names how a B2B customer pays.
type PaymentMethodType string

// Supported payment methods.
const (
	PaymentPurchaseOrder PaymentMethodType = "po"
	PaymentBillOfLading  PaymentMethodType = "bol"
	PaymentThirdParty    PaymentMethodType = "thirdparty"
	PaymentNet           PaymentMethodType = "net"
	PaymentCorporate     PaymentMethodType = "corporate"
)

// PaymentMethodTypes lists the accepted payment methods.
var PaymentMethodTypes = []PaymentMethodType{
	PaymentPurchaseOrder, PaymentBillOfLading, PaymentThirdParty, PaymentNet, PaymentCorporate,
}

// PurchaseOrder details for PaymentPurchaseOrder.
type PurchaseOrder struct {
	Number          string  `json:"number"`
	Amount          float64 `json:"amount"`
	ExpirationDate  string  `json:"expirationDate"`
	ApprovalContact string  `json:"approvalContact"`
	Department      string  `json:"department"`
}

// PaymentMethod is the payment selection. Only the block matching Type is read.
type PaymentMethod struct {
	Type             PaymentMethodType `json:"type"`
	PurchaseOrder    PurchaseOrder     `json:"purchaseOrder"`
	AccountNumber    string            `json:"accountNumber"`
	BillOfLading     string            `json:"billOfLading"`
	ThirdPartyName   string            `json:"thirdPartyName"`
	NetTermsDays     int               `json:"netTermsDays"`
	AuthorizationRef string            `json:"authorizationRef"`
}

// InvoicePreferences controls how invoices are delivered.
type InvoicePreferences struct {
	DeliveryMethod string `json:"deliveryMethod"`
	Format         string `json:"format"`
	Frequency      string `json:"frequency"`
	Email          string `json:"email"`
}

// CompanyInfo identifies the paying company.
type CompanyInfo struct {
	LegalName string `json:"legalName"`
	TaxID     string `json:"taxId"`
	Industry  string `json:"industry"`
}

// BillingInfo is the aggregate edited on the payment step.
type BillingInfo struct {
	PaymentMethod      PaymentMethod      `json:"paymentMethod"`
	BillingAddress     Address            `json:"billingAddress"`
	InvoicePreferences InvoicePreferences `json:"invoicePreferences"`
	CompanyInfo        CompanyInfo        `json:"companyInfo"`
}
