// Package costcalc estimates what a commuter pays per month driving alone
// versus carpooling. The figures are deliberately coarse lookup-table
// estimates, not a fare engine.
package costcalc

type FuelType string

const (
	Petrol FuelType = "petrol"
	Diesel FuelType = "diesel"
	CNG    FuelType = "cng"
)

const (
	weeksPerMonth      = 4.33
	parkingPerDay      = 50.0
	monthlyMaintenance = 2000.0
	tollNear           = 400.0
	tollFar            = 800.0
	farDistanceKm      = 20.0
)

// km per liter and currency units per liter, per fuel type.
var fuelEfficiency = map[FuelType]float64{Petrol: 15, Diesel: 20, CNG: 18}
var fuelPrice = map[FuelType]float64{Petrol: 100, Diesel: 90, CNG: 60}

type Comparison struct {
	PersonalMonthlyCost float64 `json:"personal_cost"`
	CarpoolMonthlyCost  float64 `json:"carpool_cost"`
	MonthlySavings      float64 `json:"savings"`
	FuelCost            float64 `json:"fuel_cost"`
	Toll                float64 `json:"toll"`
	Parking             float64 `json:"parking"`
	Maintenance         float64 `json:"maintenance"`
}

// Compare is pure: identical inputs always produce identical output.
// It returns ok=false without computing anything when distance or days is
// not positive, or when the fuel type is unknown.
func Compare(dailyDistanceKm float64, daysPerWeek int, fuel FuelType) (Comparison, bool) {
	if dailyDistanceKm <= 0 || daysPerWeek <= 0 {
		return Comparison{}, false
	}
	efficiency, ok := fuelEfficiency[fuel]
	if !ok {
		return Comparison{}, false
	}

	monthlyDistance := dailyDistanceKm * float64(daysPerWeek) * weeksPerMonth
	fuelCost := (monthlyDistance / efficiency) * fuelPrice[fuel]

	toll := tollNear
	if dailyDistanceKm > farDistanceKm {
		toll = tollFar
	}
	parking := float64(daysPerWeek) * weeksPerMonth * parkingPerDay

	personal := fuelCost + toll + parking + monthlyMaintenance
	// Carpool models a two-way split of the running costs; parking and
	// maintenance stay with the vehicle owner.
	carpool := (fuelCost + toll) / 2

	return Comparison{
		PersonalMonthlyCost: personal,
		CarpoolMonthlyCost:  carpool,
		MonthlySavings:      personal - carpool,
		FuelCost:            fuelCost,
		Toll:                toll,
		Parking:             parking,
		Maintenance:         monthlyMaintenance,
	}, true
}
