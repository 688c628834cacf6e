package consent

// Usage events.
const (
	EventPageView        = "page_view"
	EventMenuOpen        = "menu_open"
	EventMenuClose       = "menu_close"
	EventOpenSubcategory = "open_subcategory"
	EventAddToCart       = "add_to_cart"
	EventRemoveFromCart  = "remove_from_cart"
	EventCartOpen        = "cart_open"
	EventCartClose       = "cart_close"
	EventCheckout        = "checkout_clicked"
	EventQuickView       = "quick_view"
	EventSearch          = "search"
	EventSearchNoResults = "search_no_results"
	EventConsentGranted  = "consent_granted"
	EventConsentDeclined = "consent_declined"
	EventExportUsage     = "export_usage"
)
