package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	"fleetrental/internal/repository"
)

// Columns: fleet_id, make, model, rego, category, mileage, fuel_level.
// Header order does not matter; unknown headers abort the import so a
// typo cannot silently drop a column.
func main() {
	godotenv.Load()

	var file string
	var dryRun bool
	flag.StringVar(&file, "file", "fleet.csv", "CSV file with one vehicle per row")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and report without creating entities")
	flag.Parse()

	vehicles, err := loadVehicles(file)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", file, err)
	}
	log.Printf("Parsed %d vehicles from %s", len(vehicles), file)
	if dryRun {
		return
	}

	store, err := buildStore()
	if err != nil {
		log.Fatalf("Failed to set up entity store: %v", err)
	}
	repo := repository.NewFleetRepository(store)

	ctx := context.Background()
	created := 0
	for _, v := range vehicles {
		if _, err := repo.CreateVehicle(ctx, &v); err != nil {
			log.Fatalf("Failed to create vehicle %s: %v", v.Rego, err)
		}
		created++
	}
	log.Printf("Imported %d vehicles", created)
}

func buildStore() (entityapi.Store, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			return nil, err
		}
		pg := entityapi.NewPgStore(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return pg, nil
	}
	apiURL := os.Getenv("ENTITY_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("neither DATABASE_URL nor ENTITY_API_URL set")
	}
	return entityapi.NewClient(apiURL, os.Getenv("ENTITY_API_KEY")), nil
}

func loadVehicles(file string) ([]entities.Vehicle, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	headings, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV rows: %w", err)
	}

	vehicles := make([]entities.Vehicle, 0, len(rows))
	for n, row := range rows {
		v, err := vehicleFromRow(headings, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, nil
}

func vehicleFromRow(headings, row []string) (*entities.Vehicle, error) {
	v := &entities.Vehicle{Status: entities.VehicleAvailable}
	for i, heading := range headings {
		value := row[i]
		switch heading {
		case "fleet_id":
			v.FleetID = value
		case "make":
			v.Make = value
		case "model":
			v.Model = value
		case "rego":
			v.Rego = value
		case "category":
			v.Category = value
		case "mileage":
			mileage, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("unable to parse mileage (%s): %w", value, err)
			}
			v.Mileage = mileage
		case "fuel_level":
			fuel, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("unable to parse fuel_level (%s): %w", value, err)
			}
			v.FuelLevel = fuel
		default:
			return nil, fmt.Errorf("unknown heading %q in column %d", heading, i+1)
		}
	}
	if v.Rego == "" {
		return nil, fmt.Errorf("rego is required")
	}
	return v, nil
}
