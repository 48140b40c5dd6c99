package config

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"raycar/backend/internal/vehicle"
)

// WheelOverrides - необязательные переопределения параметров колеса
type WheelOverrides struct {
	Radius                 *float64  `yaml:"radius,omitempty"`
	Direction              []float64 `yaml:"direction,omitempty"`
	Axle                   []float64 `yaml:"axle,omitempty"`
	SuspensionStiffness    *float64  `yaml:"suspensionStiffness,omitempty"`
	RestLength             *float64  `yaml:"restLength,omitempty"`
	MaxSuspensionTravel    *float64  `yaml:"maxSuspensionTravel,omitempty"`
	MaxSuspensionForce     *float64  `yaml:"maxSuspensionForce,omitempty"`
	DampingCompression     *float64  `yaml:"dampingCompression,omitempty"`
	DampingRelaxation      *float64  `yaml:"dampingRelaxation,omitempty"`
	FrictionSlip           *float64  `yaml:"frictionSlip,omitempty"`
	RollInfluence          *float64  `yaml:"rollInfluence,omitempty"`
	SlidingRotationalSpeed *float64  `yaml:"slidingRotationalSpeed,omitempty"`
}

// WheelEntry - одно колесо в файле машины
type WheelEntry struct {
	Role       string    `yaml:"role"`
	Connection []float64 `yaml:"connection"`
	Scale      []float64 `yaml:"scale,omitempty"`

	WheelOverrides `yaml:",inline"`
}

// ChassisEntry - корпус в файле машины. nil - значение стандартной машины.
type ChassisEntry struct {
	Dimensions []float64 `yaml:"dimensions"`
	Mass       *float64  `yaml:"mass"`
	Offset     []float64 `yaml:"offset,omitempty"`
}

// DriveEntry - константы управления в файле машины. Явный 0 допустим (например, без торможения на холостом ходу).
type DriveEntry struct {
	MaxSteer   *float64  `yaml:"maxSteer"`
	MaxForce   *float64  `yaml:"maxForce"`
	BrakeForce *float64  `yaml:"brakeForce"`
	SlowDown   *float64  `yaml:"slowDown"`
	Spawn      []float64 `yaml:"spawn"`
}

// VehicleFile - описание машины в YAML
type VehicleFile struct {
	Name    string         `yaml:"name"`
	Chassis ChassisEntry   `yaml:"chassis"`
	Drive   DriveEntry     `yaml:"drive"`
	Wheel   WheelOverrides `yaml:"wheel"`
	Wheels  []WheelEntry   `yaml:"wheels"`
}

// Vehicle - собранная конфигурация машины
type Vehicle struct {
	Name          string
	Chassis       vehicle.ChassisSpec
	Wheels        [vehicle.WheelCount]vehicle.WheelSpec
	Drive         vehicle.DriveSpec
	ChassisOffset mgl64.Vec3
	WheelScale    [vehicle.WheelCount]mgl64.Vec3
}

// DefaultVehicle возвращает стандартную машину
func DefaultVehicle() *Vehicle {
	v := &Vehicle{
		Name:          "default",
		Chassis:       vehicle.DefaultChassisSpec(),
		Wheels:        vehicle.DefaultWheelSpecs(),
		Drive:         vehicle.DefaultDriveSpec(),
		ChassisOffset: mgl64.Vec3{0, -0.63, 0},
	}
	for i, w := range v.Wheels {
		v.WheelScale[i] = defaultWheelScale(w.Role)
	}
	return v
}

// Правые колёса используют зеркальный меш
func defaultWheelScale(role vehicle.WheelRole) mgl64.Vec3 {
	const k = 1.1
	if role.Right() {
		return mgl64.Vec3{-k, k, -k}
	}
	return mgl64.Vec3{k, k, k}
}

// LoadVehicle читает описание машины из YAML
func LoadVehicle(r io.Reader) (*VehicleFile, error) {
	var f VehicleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode vehicle file: %w", err)
	}
	return &f, nil
}

// LoadVehicleFile читает описание машины из файла. Пустой путь - стандартная машина.
func LoadVehicleFile(path string) (*Vehicle, error) {
	if path == "" {
		return DefaultVehicle(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vehicle file: %w", err)
	}
	defer file.Close()

	vf, err := LoadVehicle(file)
	if err != nil {
		return nil, err
	}
	return vf.Build()
}

// Build собирает конфигурацию машины. Отсутствующие значения берутся у стандартной машины.
func (f *VehicleFile) Build() (*Vehicle, error) {
	v := DefaultVehicle()
	if f.Name != "" {
		v.Name = f.Name
	}

	var err error
	if f.Chassis.Dimensions != nil {
		if v.Chassis.Dimensions, err = vec3("chassis.dimensions", f.Chassis.Dimensions); err != nil {
			return nil, err
		}
	}
	setFloat(&v.Chassis.Mass, f.Chassis.Mass)
	if f.Chassis.Offset != nil {
		if v.ChassisOffset, err = vec3("chassis.offset", f.Chassis.Offset); err != nil {
			return nil, err
		}
	}

	setFloat(&v.Drive.MaxSteer, f.Drive.MaxSteer)
	setFloat(&v.Drive.MaxForce, f.Drive.MaxForce)
	setFloat(&v.Drive.BrakeForce, f.Drive.BrakeForce)
	setFloat(&v.Drive.SlowDown, f.Drive.SlowDown)
	if f.Drive.Spawn != nil {
		if v.Drive.Spawn, err = vec3("drive.spawn", f.Drive.Spawn); err != nil {
			return nil, err
		}
	}

	if len(f.Wheels) == 0 {
		// Общие переопределения без списка колёс применяются к стандартным колёсам
		for i := range v.Wheels {
			if err := f.Wheel.apply(&v.Wheels[i], "wheel"); err != nil {
				return nil, err
			}
		}
	} else if err := f.buildWheels(v); err != nil {
		return nil, err
	}

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func (f *VehicleFile) buildWheels(v *Vehicle) error {
	if len(f.Wheels) != vehicle.WheelCount {
		return &vehicle.ConfigError{
			Field:  "wheels",
			Reason: fmt.Sprintf("need exactly %d wheels, got %d", vehicle.WheelCount, len(f.Wheels)),
		}
	}

	base := vehicle.DefaultWheelSpec()
	if err := f.Wheel.apply(&base, "wheel"); err != nil {
		return err
	}

	for i, entry := range f.Wheels {
		field := fmt.Sprintf("wheels[%d]", i)
		role, err := vehicle.ParseWheelRole(entry.Role)
		if err != nil {
			return &vehicle.ConfigError{Field: field + ".role", Reason: err.Error()}
		}
		conn, err := vec3(field+".connection", entry.Connection)
		if err != nil {
			return err
		}

		spec := base
		spec.Role = role
		spec.ConnectionPoint = conn
		if err := entry.WheelOverrides.apply(&spec, field); err != nil {
			return err
		}
		v.Wheels[i] = spec

		v.WheelScale[i] = defaultWheelScale(role)
		if entry.Scale != nil {
			if v.WheelScale[i], err = vec3(field+".scale", entry.Scale); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate проверяет собранную машину так же, как при создании
func (v *Vehicle) Validate() error {
	if err := v.Chassis.Validate(); err != nil {
		return err
	}
	if err := vehicle.ValidateWheels(v.Wheels); err != nil {
		return err
	}
	return v.Drive.Validate()
}

func (o WheelOverrides) apply(w *vehicle.WheelSpec, field string) error {
	set := setFloat
	set(&w.Radius, o.Radius)
	set(&w.SuspensionStiffness, o.SuspensionStiffness)
	set(&w.RestLength, o.RestLength)
	set(&w.MaxSuspensionTravel, o.MaxSuspensionTravel)
	set(&w.MaxSuspensionForce, o.MaxSuspensionForce)
	set(&w.DampingCompression, o.DampingCompression)
	set(&w.DampingRelaxation, o.DampingRelaxation)
	set(&w.FrictionSlip, o.FrictionSlip)
	set(&w.RollInfluence, o.RollInfluence)
	set(&w.SlidingRotationalSpeed, o.SlidingRotationalSpeed)

	var err error
	if o.Direction != nil {
		if w.Direction, err = vec3(field+".direction", o.Direction); err != nil {
			return err
		}
	}
	if o.Axle != nil {
		if w.Axle, err = vec3(field+".axle", o.Axle); err != nil {
			return err
		}
	}
	return nil
}

func setFloat(dst, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func vec3(field string, v []float64) (mgl64.Vec3, error) {
	if len(v) != 3 {
		return mgl64.Vec3{}, &vehicle.ConfigError{Field: field, Reason: fmt.Sprintf("need 3 components, got %d", len(v))}
	}
	return mgl64.Vec3{v[0], v[1], v[2]}, nil
}
