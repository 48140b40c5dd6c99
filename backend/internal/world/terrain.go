package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// perlinNoise2D - утилита для псевдо-шума
func perlinNoise2D(x, y float64) float64 {
	h := x*12.9898 + y*78.233
	sinH := math.Sin(h)
	return math.Abs(sinH*43758.5453) - math.Floor(math.Abs(sinH*43758.5453))
}

// lerpValue - плавная интерполяция между a и b
func lerpValue(a, b, t float64) float64 {
	return a + t*(b-a)
}

// smoothstepValue - функция интерполяции для сглаживания
func smoothstepValue(t float64) float64 {
	return t * t * (3.0 - 2.0*t)
}

// getSmoothNoise - сглаженный шум в точке
func getSmoothNoise(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)

	sx := smoothstepValue(x - x0)
	sy := smoothstepValue(y - y0)

	// Билинейная интерполяция между 4 углами
	nx0 := lerpValue(perlinNoise2D(x0, y0), perlinNoise2D(x0+1, y0), sx)
	nx1 := lerpValue(perlinNoise2D(x0, y0+1), perlinNoise2D(x0+1, y0+1), sx)
	return lerpValue(nx0, nx1, sy)
}

// GenerateHeights строит карту высот с холмами. Площадка радиуса FlatRadius
// вокруг центра остаётся на нулевой высоте, чтобы машина появлялась на ровном месте.
func GenerateHeights(cfg TerrainConfig) []float64 {
	cols, rows := cfg.Columns, cfg.Rows
	data := make([]float64, cols*rows)
	if cols < 2 || rows < 2 {
		return data
	}

	scales := []float64{1.0, 0.5, 0.25, 0.125}
	amplitudes := []float64{0.5, 0.25, 0.125, 0.0625}
	heightRange := cfg.MaxHeight - cfg.MinHeight

	// Фиксированные позиции холмов для воспроизводимости
	hills := []struct{ x, z float64 }{
		{0.2, 0.3}, {0.7, 0.8}, {0.4, 0.7}, {0.8, 0.2}, {0.1, 0.9},
	}

	centerX := float64(cols-1) / 2
	centerZ := float64(rows-1) / 2

	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			nx := float64(i) / float64(cols-1)
			nz := float64(j) / float64(rows-1)

			noise := 0.0
			for layer, scale := range scales {
				noise += getSmoothNoise(nx*scale*10.0, nz*scale*10.0) * amplitudes[layer]
			}
			elevation := noise

			for k, hill := range hills {
				dx := float64(i) - hill.x*float64(cols)
				dz := float64(j) - hill.z*float64(rows)
				radius := 5.0 + 15.0*math.Abs(perlinNoise2D(0.5, float64(k)*0.1))
				distance := math.Sqrt(dx*dx + dz*dz)
				if distance < radius {
					falloff := math.Pow(1.0-distance/radius, 2.0)
					elevation += (0.5 + 0.5*perlinNoise2D(float64(k)*0.1, 0.5)) * falloff * 0.8
				}
			}

			height := elevation*heightRange + cfg.MinHeight

			// Выравниваем стартовую площадку
			if cfg.FlatRadius > 0 {
				wx := (float64(i) - centerX) * cfg.ElementSize
				wz := (float64(j) - centerZ) * cfg.ElementSize
				d := math.Sqrt(wx*wx + wz*wz)
				if d < cfg.FlatRadius {
					height = 0
				} else if d < 2*cfg.FlatRadius {
					height *= smoothstepValue((d - cfg.FlatRadius) / cfg.FlatRadius)
				}
			}

			data[j*cols+i] = height
		}
	}

	return data
}

// Heightfield - регулярная сетка высот с центром в начале координат
type Heightfield struct {
	cols, rows  int
	elementSize float64
	heights     []float64
	originX     float64
	originZ     float64
}

// NewHeightfield создает поверхность из готовых высот (строка за строкой по оси Z)
func NewHeightfield(cols, rows int, elementSize float64, heights []float64) *Heightfield {
	return &Heightfield{
		cols:        cols,
		rows:        rows,
		elementSize: elementSize,
		heights:     heights,
		originX:     -float64(cols-1) * elementSize / 2,
		originZ:     -float64(rows-1) * elementSize / 2,
	}
}

// NewTerrain генерирует холмистую поверхность по конфигурации
func NewTerrain(cfg TerrainConfig) *Heightfield {
	return NewHeightfield(cfg.Columns, cfg.Rows, cfg.ElementSize, GenerateHeights(cfg))
}

func (h *Heightfield) at(i, j int) float64 {
	if i < 0 {
		i = 0
	} else if i >= h.cols {
		i = h.cols - 1
	}
	if j < 0 {
		j = 0
	} else if j >= h.rows {
		j = h.rows - 1
	}
	return h.heights[j*h.cols+i]
}

// HeightAt возвращает билинейно интерполированную высоту и нормаль
func (h *Heightfield) HeightAt(x, z float64) (float64, mgl64.Vec3, bool) {
	fx := (x - h.originX) / h.elementSize
	fz := (z - h.originZ) / h.elementSize
	if fx < 0 || fz < 0 || fx > float64(h.cols-1) || fz > float64(h.rows-1) {
		return 0, up, false
	}

	i, j := int(math.Floor(fx)), int(math.Floor(fz))
	tx, tz := fx-float64(i), fz-float64(j)

	h00, h10 := h.at(i, j), h.at(i+1, j)
	h01, h11 := h.at(i, j+1), h.at(i+1, j+1)

	height := lerpValue(lerpValue(h00, h10, tx), lerpValue(h01, h11, tx), tz)

	// Градиент билинейной поверхности
	dhdx := (lerpValue(h10, h11, tz) - lerpValue(h00, h01, tz)) / h.elementSize
	dhdz := (lerpValue(h01, h11, tx) - lerpValue(h00, h10, tx)) / h.elementSize
	normal := mgl64.Vec3{-dhdx, 1, -dhdz}.Normalize()

	return height, normal, true
}

const (
	heightfieldMarchDivisions = 4
	heightfieldBisectSteps    = 24
)

// Raycast шагает вдоль отрезка и уточняет пересечение бисекцией
func (h *Heightfield) Raycast(from, to mgl64.Vec3) (RayHit, bool) {
	above := func(p mgl64.Vec3) (bool, bool) {
		height, _, ok := h.HeightAt(p.X(), p.Z())
		if !ok {
			return false, false
		}
		return p.Y() >= height, true
	}

	if a, ok := above(from); !ok || !a {
		return RayHit{}, false
	}

	seg := to.Sub(from)
	length := seg.Len()
	if length == 0 {
		return RayHit{}, false
	}

	step := h.elementSize / heightfieldMarchDivisions
	n := int(math.Ceil(length/step)) + 1

	prev := 0.0
	for k := 1; k <= n; k++ {
		t := math.Min(float64(k)/float64(n), 1)
		a, ok := above(from.Add(seg.Mul(t)))
		if !ok {
			return RayHit{}, false
		}
		if a {
			prev = t
			continue
		}

		lo, hi := prev, t
		for s := 0; s < heightfieldBisectSteps; s++ {
			mid := (lo + hi) / 2
			if a, _ := above(from.Add(seg.Mul(mid))); a {
				lo = mid
			} else {
				hi = mid
			}
		}

		point := from.Add(seg.Mul(hi))
		_, normal, _ := h.HeightAt(point.X(), point.Z())
		return RayHit{
			Point:    point,
			Normal:   normal,
			Distance: length * hi,
			Body:     GroundHandle,
		}, true
	}

	return RayHit{}, false
}
