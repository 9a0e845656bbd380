package model

// Well-known intents the classifier is prompted to use. The classifier may
// emit others; CategoryFor buckets anything unrecognized as unknown.
const (
	IntentGreeting       string = "greeting"
	IntentGoodbye        string = "goodbye"
	IntentCompliment     string = "compliment"
	IntentProductInquiry string = "product_inquiry"
	IntentPricing        string = "pricing"
	IntentAvailability   string = "availability"
	IntentSupportRequest string = "support_request"
	IntentTechnicalIssue string = "technical_issue"
	IntentComplaint      string = "complaint"
	IntentOrderStatus    string = "order_status"
	IntentOrderCancel    string = "order_cancellation"
	IntentRefundRequest  string = "refund_request"
	IntentAccountUpdate  string = "account_update"
	IntentUnknown        string = "unknown"
)

// IntentCategory groups intents for strategy selection and policy rules.
type IntentCategory string

const (
	CategorySmallTalk IntentCategory = "small_talk"
	CategoryInquiry   IntentCategory = "inquiry"
	CategorySupport   IntentCategory = "support"
	CategoryComplaint IntentCategory = "complaint"
	CategoryWorkflow  IntentCategory = "workflow"
	CategoryUnknown   IntentCategory = "unknown"
)

var intentCategories = map[string]IntentCategory{
	IntentGreeting:       CategorySmallTalk,
	IntentGoodbye:        CategorySmallTalk,
	IntentCompliment:     CategorySmallTalk,
	IntentProductInquiry: CategoryInquiry,
	IntentPricing:        CategoryInquiry,
	IntentAvailability:   CategoryInquiry,
	IntentSupportRequest: CategorySupport,
	IntentTechnicalIssue: CategorySupport,
	IntentComplaint:      CategoryComplaint,
	IntentOrderStatus:    CategoryWorkflow,
	IntentOrderCancel:    CategoryWorkflow,
	IntentRefundRequest:  CategoryWorkflow,
	IntentAccountUpdate:  CategoryWorkflow,
}

// CategoryFor maps an intent to its category. Unrecognized intents map to
// CategoryUnknown.
func CategoryFor(intent string) IntentCategory {
	if cat, ok := intentCategories[intent]; ok {
		return cat
	}
	return CategoryUnknown
}
