package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Any valid access token
	SecurityStaff                       // Access token with admin or system role
)

// Route names registered by the HTTP router.
const (
	RouteHealth             = "health"
	RouteQuote              = "quote"
	RouteCarAvailability    = "car.availability"
	RouteCarsAvailable      = "cars.available"
	RouteCarsList           = "cars.list"
	RouteCarGet             = "cars.get"
	RouteCarCreate          = "cars.create"
	RouteCarMaintenance     = "cars.maintenance"
	RouteCarRelease         = "cars.release"
	RouteReservationCreate  = "reservations.create"
	RouteReservationList    = "reservations.list"
	RouteReservationGet     = "reservations.get"
	RouteReservationHistory = "reservations.history"
	RouteReservationCancel  = "reservations.cancel"
	RouteReservationExtend  = "reservations.extend"
	RouteReservationActive  = "reservations.activate"
	RouteReservationReturn  = "reservations.return"
	RouteReservationDone    = "reservations.complete"
	RoutePaymentRecord      = "payments.record"
	RoutePaymentList        = "payments.list"
	RouteDepositQR          = "payments.deposit_qr"
	RouteChecklistRecord    = "checklists.record"
	RouteChecklistList      = "checklists.list"
	RouteLocationRecord     = "tracking.record"
	RouteLocationCurrent    = "tracking.current"
	RouteLocationHistory    = "tracking.history"
	RouteActiveRentals      = "tracking.active_rentals"
)

// EndpointSecurityConfig maps route names to their required security level.
// Services still check ownership; this only gates who may reach a handler.
var EndpointSecurityConfig = map[string]SecurityLevel{
	RouteHealth:          SecurityPublic,
	RouteQuote:           SecurityPublic,
	RouteCarAvailability: SecurityPublic,
	RouteCarsAvailable:   SecurityPublic,
	RouteCarsList:        SecurityPublic,
	RouteCarGet:          SecurityPublic,

	RouteCarCreate:      SecurityStaff,
	RouteCarMaintenance: SecurityStaff,
	RouteCarRelease:     SecurityStaff,

	RouteReservationCreate:  SecurityAccess,
	RouteReservationList:    SecurityAccess,
	RouteReservationGet:     SecurityAccess,
	RouteReservationHistory: SecurityAccess,
	RouteReservationCancel:  SecurityAccess,
	RouteReservationExtend:  SecurityAccess,
	RouteReservationActive:  SecurityStaff,
	RouteReservationReturn:  SecurityStaff,
	RouteReservationDone:    SecurityStaff,

	RoutePaymentRecord: SecurityStaff,
	RoutePaymentList:   SecurityAccess,
	RouteDepositQR:     SecurityAccess,

	RouteChecklistRecord: SecurityStaff,
	RouteChecklistList:   SecurityAccess,

	RouteLocationRecord:  SecurityAccess,
	RouteLocationCurrent: SecurityStaff,
	RouteLocationHistory: SecurityAccess,
	RouteActiveRentals:   SecurityStaff,
}

// GetSecurityLevel returns the level for a route. Unknown routes require an
// access token.
func GetSecurityLevel(route string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[route]; ok {
		return level
	}
	return SecurityAccess
}
