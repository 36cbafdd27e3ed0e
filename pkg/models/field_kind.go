package models

// FieldKind is the closed tagged-sum of field validator kinds.
type FieldKind string

const (
	FieldName_      FieldKind = "name"
	FieldEmail      FieldKind = "email"
	FieldPhone      FieldKind = "phone"
	FieldCity       FieldKind = "city"
	FieldAddress    FieldKind = "address"
	FieldTaxIDPerson FieldKind = "taxid_person"
	FieldTaxIDOrg   FieldKind = "taxid_org"
	FieldCEP        FieldKind = "cep"
	FieldDate       FieldKind = "date"
	FieldBirthdate  FieldKind = "birthdate"
	FieldCurrency   FieldKind = "currency"
	FieldUrgency    FieldKind = "urgency"
	FieldInterest   FieldKind = "interest"
	FieldGeneric    FieldKind = "generic"
)

// ValidationStatus tracks a field's progress through the retry pipeline.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "PENDING"
	ValidationValid   ValidationStatus = "VALID"
	ValidationInvalid ValidationStatus = "INVALID"
	ValidationSkipped ValidationStatus = "SKIPPED"
)
