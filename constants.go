package wolfcomm

import "time"

const (
	baseURL          = "https://www.wolf-smartset.com/portal"
	localizedTextURL = "https://www.wolf-smartset.com/js/localized-text/text.culture.%s.js"
	userAgent        = "wolf-comm-go"
)

// Portal endpoint paths, relative to baseURL.
const (
	pathToken           = "connect/token"
	pathCreateSession   = "api/portal/CreateSession2"
	pathUpdateSession   = "api/portal/UpdateSession"
	pathSystemList      = "api/portal/GetSystemList"
	pathSystemStateList = "api/portal/GetSystemStateList"
	pathGuiDescription  = "api/portal/GetGuiDescriptionForGateway"
	pathParameterValues = "api/portal/GetParameterValues"
	pathWriteParameters = "api/portal/WriteParameterValues"
	pathCloseSystem     = "api/portal/CloseSystem"
)

// JSON field names used in portal payloads. The GUI description is traversed
// generically, so these appear as map keys rather than struct tags.
const (
	fieldSessionID            = "SessionId"
	fieldTimestamp            = "Timestamp"
	fieldSystemID             = "SystemId"
	fieldGatewayID            = "GatewayId"
	fieldSystemList           = "SystemList"
	fieldMenuItems            = "MenuItems"
	fieldTabViews             = "TabViews"
	fieldTabName              = "TabName"
	fieldParameterDescriptors = "ParameterDescriptors"
	fieldSVGSchemaDevices     = "SVGHeatingSchemaConfigDevices"
	fieldValueID              = "ValueId"
	fieldName                 = "Name"
	fieldParameterID          = "ParameterId"
	fieldUnit                 = "Unit"
	fieldListItems            = "ListItems"
	fieldDisplayText          = "DisplayText"
	fieldIsReadOnly           = "IsReadOnly"
	fieldBundleID             = "BundleId"
	fieldBundle               = "Bundle"
	fieldValueIDList          = "ValueIdList"
	fieldGuiIDChanged         = "GuiIdChanged"
	fieldLastAccess           = "LastAccess"
	fieldValue                = "Value"
	fieldState                = "State"
	fieldWriteParameterValues = "WriteParameterValues"
)

// Unit tags attached to parameter descriptors.
const (
	unitCelsius       = "Celsius"
	unitBar           = "Bar"
	unitPercentage    = "Percentage"
	unitHour          = "Hour"
	unitKilowatt      = "Kilowatt"
	unitKilowattHours = "KilowattHours"
	unitRPM           = "RPM"
	unitFlow          = "Flow"
	unitFrequency     = "Frequency"
)

// errMsgReadParameter is the ErrorMessage the portal attaches when reading
// parameter values failed on its side.
const errMsgReadParameter = "ReadParameterValues"

const (
	// defaultBundleID is the bundle the portal assigns to descriptors that
	// carry no BundleId of their own. Writes always go through it.
	defaultBundleID int64 = 1000

	// sessionRefreshInterval is how long an UpdateSession call keeps the
	// server-side session alive.
	sessionRefreshInterval = 60 * time.Second

	// tokenExpiryMargin makes the expiry check conservative so a request
	// started near the deadline cannot run on a token that lapses mid-flight.
	tokenExpiryMargin = time.Minute

	// jsonRepairAttempts bounds the localized-text repair loop.
	jsonRepairAttempts = 1000

	// fallbackRegion is the localization region used when the configured one
	// has no text resource. It is also the default region.
	fallbackRegion = "en"

	sessionTimestampLayout = "2006-01-02T15:04:05"

	defaultTimeout = 10 * time.Second
)
