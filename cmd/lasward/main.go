// Package main is the lasward command line tool.
package main

import (
	"encoding/csv"
	"io"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/edaniels/golog"
	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.viam.com/utils"

	"github.com/flightlines/lasward"
	"github.com/flightlines/lasward/adjust"
	"github.com/flightlines/lasward/config"
	"github.com/flightlines/lasward/measurement"
	"github.com/flightlines/lasward/spatialmath"
	"github.com/flightlines/lasward/trajectory"
)

const (
	// Flags.
	flagSbet           = "sbet"
	flagZone           = "zone"
	flagOutput         = "output"
	flagDecimate       = "decimate"
	flagBoresightRoll  = "boresight-roll"
	flagBoresightPitch = "boresight-pitch"
	flagBoresightYaw   = "boresight-yaw"
	flagLeverArmX      = "lever-arm-x"
	flagLeverArmY      = "lever-arm-y"
	flagLeverArmZ      = "lever-arm-z"
	flagLeverArm       = "lever-arm"
	flagTolerance      = "tolerance"
	flagMaxIterations  = "max-iterations"
	flagNormalsWindow  = "normals-window"
)

const degree = math.Pi / 180

func main() {
	var logger golog.Logger

	trajectoryFlags := []cli.Flag{
		&cli.PathFlag{
			Name:     flagSbet,
			Required: true,
			Usage:    "smoothed best estimate of trajectory (sbet) file",
		},
		&cli.UintFlag{
			Name:     flagZone,
			Required: true,
			Usage:    "UTM zone of the survey",
		},
	}
	sensorFlags := []cli.Flag{
		&cli.Float64Flag{
			Name:  flagBoresightRoll,
			Usage: "boresight roll in degrees",
		},
		&cli.Float64Flag{
			Name:  flagBoresightPitch,
			Usage: "boresight pitch in degrees",
		},
		&cli.Float64Flag{
			Name:  flagBoresightYaw,
			Usage: "boresight yaw in degrees",
		},
		&cli.Float64Flag{
			Name:  flagLeverArmX,
			Usage: "lever arm x in meters",
		},
		&cli.Float64Flag{
			Name:  flagLeverArmY,
			Usage: "lever arm y in meters",
		},
		&cli.Float64Flag{
			Name:  flagLeverArmZ,
			Usage: "lever arm z in meters",
		},
	}
	outputFlags := []cli.Flag{
		&cli.PathFlag{
			Name:  flagOutput,
			Usage: "write CSV to `FILE` instead of stdout",
		},
		&cli.IntFlag{
			Name:  flagDecimate,
			Value: 1,
			Usage: "keep every Nth point",
		},
	}
	pointFlags := append(append(append([]cli.Flag{}, trajectoryFlags...), sensorFlags...), outputFlags...)

	app := &cli.App{
		Name:  "lasward",
		Usage: "compute geolocation uncertainty for airborne lidar",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger = golog.NewDebugLogger("lasward")
			} else {
				logger = zap.NewNop().Sugar()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "project-trajectory",
				Usage: "project an sbet trajectory into UTM coordinates",
				Flags: append(append([]cli.Flag{}, trajectoryFlags...), outputFlags...),
				Action: func(c *cli.Context) error {
					traj, err := loadTrajectory(c, logger)
					if err != nil {
						return err
					}
					return withCSV(c, func(w *csv.Writer) error {
						if err := w.Write([]string{"Time", "X", "Y", "Z", "Roll", "Pitch", "Yaw"}); err != nil {
							return err
						}
						decimate := c.Int(flagDecimate)
						samples := traj.Samples()
						for i := 0; i < len(samples); i += decimate {
							pose := samples[i]
							if err := w.Write(row(
								pose.Time,
								pose.Position.X, pose.Position.Y, pose.Position.Z,
								pose.Attitude.Roll, pose.Attitude.Pitch, pose.Attitude.Yaw,
							)); err != nil {
								return err
							}
						}
						return nil
					})
				},
			},
			{
				Name:      "tpu",
				Usage:     "propagate uncertainty for every point in a las file",
				ArgsUsage: "<points.las>",
				Flags: append(append([]cli.Flag{}, pointFlags...),
					&cli.IntFlag{
						Name:  flagNormalsWindow,
						Usage: "estimate surface normals over a window of N neighboring points, enabling incidence angles",
					},
				),
				Action: func(c *cli.Context) error {
					engine, returns, err := setup(c, logger, lasward.CapabilityTPU)
					if err != nil {
						return err
					}
					if window := c.Int(flagNormalsWindow); window > 0 {
						returns = engine.EstimateNormals(returns, window)
					}
					results, err := engine.Process(returns)
					if err != nil {
						if len(results) == 0 {
							return err
						}
						logger.Debugw("some returns failed", "failed", len(multierr.Errors(err)))
					}
					return withCSV(c, func(w *csv.Writer) error {
						header := []string{
							"X", "Y", "Z", "ScanAngle", "GpsTime",
							"SigmaX", "SigmaY", "SigmaHorizontal", "SigmaVertical", "SigmaMagnitude",
							"IncidenceAngle",
						}
						if err := w.Write(header); err != nil {
							return err
						}
						for _, result := range results {
							ret, u := result.Return, result.Uncertainty
							if err := w.Write(row(
								ret.X, ret.Y, ret.Z, ret.ScanAngle, ret.Time,
								u.SigmaX, u.SigmaY, u.Horizontal, u.Vertical, u.Magnitude,
								u.IncidenceAngle,
							)); err != nil {
								return err
							}
						}
						return nil
					})
				},
			},
			{
				Name:      "body-frame",
				Usage:     "express every point in the platform body frame",
				ArgsUsage: "<points.las>",
				Flags:     pointFlags,
				Action: func(c *cli.Context) error {
					engine, returns, err := setup(c, logger, lasward.CapabilityBodyFrame)
					if err != nil {
						return err
					}
					results, err := engine.Process(returns)
					if err != nil {
						if len(results) == 0 {
							return err
						}
						logger.Debugw("some returns failed", "failed", len(multierr.Errors(err)))
					}
					return withCSV(c, func(w *csv.Writer) error {
						header := []string{
							"GpsTime", "X", "Y", "Z",
							"BodyX", "BodyY", "BodyZ",
							"Roll", "Pitch", "Yaw",
						}
						if err := w.Write(header); err != nil {
							return err
						}
						for _, result := range results {
							ret, body := result.Return, result.BodyFrame
							if err := w.Write(row(
								ret.Time, ret.X, ret.Y, ret.Z,
								body.X, body.Y, body.Z,
								body.Roll, body.Pitch, body.Yaw,
							)); err != nil {
								return err
							}
						}
						return nil
					})
				},
			},
			{
				Name:      "backconvert",
				Usage:     "recompute every point through the lidar equation and report misalignments",
				ArgsUsage: "<points.las>",
				Flags:     pointFlags,
				Action: func(c *cli.Context) error {
					engine, returns, err := setup(c, logger, lasward.CapabilityBodyFrame)
					if err != nil {
						return err
					}
					return withCSV(c, func(w *csv.Writer) error {
						header := []string{
							"X", "Y", "Z",
							"ComputedX", "ComputedY", "ComputedZ",
							"MisalignmentX", "MisalignmentY", "MisalignmentZ", "Misalignment",
						}
						if err := w.Write(header); err != nil {
							return err
						}
						var errs error
						for i, ret := range returns {
							m, err := engine.Measurement(ret)
							if err != nil {
								errs = multierr.Append(errs, errors.Wrapf(err, "return %d", i))
								continue
							}
							computed := m.Backconvert()
							misalignment := m.Misalignment()
							if err := w.Write(row(
								ret.X, ret.Y, ret.Z,
								computed.X, computed.Y, computed.Z,
								misalignment.X, misalignment.Y, misalignment.Z,
								misalignment.Norm(),
							)); err != nil {
								return err
							}
						}
						return errs
					})
				},
			},
			{
				Name:      "adjust",
				Usage:     "estimate boresight or lever-arm corrections from a las file",
				ArgsUsage: "<points.las>",
				Flags: append(append([]cli.Flag{}, pointFlags...),
					&cli.BoolFlag{
						Name:  flagLeverArm,
						Usage: "adjust the lever arm instead of the boresight angles",
					},
					&cli.Float64Flag{
						Name:  flagTolerance,
						Value: 1e-6,
						Usage: "convergence tolerance on the change in rmse",
					},
					&cli.IntFlag{
						Name:  flagMaxIterations,
						Value: 100,
						Usage: "iteration bound",
					},
				),
				Action: func(c *cli.Context) error {
					engine, returns, err := setup(c, logger, lasward.CapabilityBodyFrame)
					if err != nil {
						return err
					}
					cfg, err := sensorFromFlags(c)
					if err != nil {
						return err
					}
					measurements, errs := measurementsFor(engine, returns)
					if len(measurements) == 0 {
						return multierr.Append(errors.New("no measurements inside the trajectory"), errs)
					}
					if errs != nil {
						logger.Debugw("some returns were skipped", "skipped", len(multierr.Errors(errs)))
					}
					adjuster, err := adjust.New(measurements, &cfg, logger)
					if err != nil {
						return err
					}
					adjuster.AdjustLeverArm(c.Bool(flagLeverArm))
					adjuster.SetTolerance(c.Float64(flagTolerance))
					adjuster.SetMaxIterations(c.Int(flagMaxIterations))
					result, err := adjuster.Run()
					if err != nil {
						return multierr.Append(err, errs)
					}
					logger.Infow("adjustment converged",
						"rmse", result.RMSE,
						"boresight-roll", result.Boresight.Roll/degree,
						"boresight-pitch", result.Boresight.Pitch/degree,
						"boresight-yaw", result.Boresight.Yaw/degree,
						"lever-arm-x", result.LeverArm.X,
						"lever-arm-y", result.LeverArm.Y,
						"lever-arm-z", result.LeverArm.Z,
					)
					return withCSV(c, func(w *csv.Writer) error {
						if err := w.Write([]string{"Iteration", "RMSE", "Value0", "Value1", "Value2"}); err != nil {
							return err
						}
						for i, iteration := range result.History {
							fields := append([]float64{float64(i), iteration.RMSE}, iteration.Values...)
							if err := w.Write(row(fields...)); err != nil {
								return err
							}
						}
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// sensorFromFlags builds and validates the sensor configuration. Angular
// flags are degrees on the command line and radians everywhere else.
func sensorFromFlags(c *cli.Context) (config.Sensor, error) {
	cfg := config.Sensor{
		UTMZone: uint8(c.Uint(flagZone)),
		Boresight: spatialmath.EulerAngles{
			Roll:  c.Float64(flagBoresightRoll) * degree,
			Pitch: c.Float64(flagBoresightPitch) * degree,
			Yaw:   c.Float64(flagBoresightYaw) * degree,
		},
		LeverArm: r3.Vector{
			X: c.Float64(flagLeverArmX),
			Y: c.Float64(flagLeverArmY),
			Z: c.Float64(flagLeverArmZ),
		},
		Errors: config.DefaultErrorModel(),
	}
	if err := cfg.Validate(); err != nil {
		return config.Sensor{}, err
	}
	return cfg, nil
}

func loadTrajectory(c *cli.Context, logger golog.Logger) (*trajectory.Trajectory, error) {
	samples, err := trajectory.ReadSbetFile(c.Path(flagSbet), logger)
	if err != nil {
		return nil, err
	}
	return trajectory.Project(samples, uint8(c.Uint(flagZone)), r3.Vector{}, spatialmath.EulerAngles{})
}

// setup builds the engine from the trajectory and sensor flags and reads the
// las file named by the first argument.
func setup(c *cli.Context, logger golog.Logger, capability lasward.Capability) (*lasward.Engine, []lasward.Return, error) {
	lasPath := c.Args().First()
	if lasPath == "" {
		return nil, nil, errors.New("las file required")
	}
	cfg, err := sensorFromFlags(c)
	if err != nil {
		return nil, nil, err
	}
	traj, err := loadTrajectory(c, logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := lasward.NewEngine(traj, &cfg, capability, logger)
	if err != nil {
		return nil, nil, err
	}
	returns, err := readReturns(lasPath, c.Int(flagDecimate), logger)
	if err != nil {
		return nil, nil, err
	}
	return engine, returns, nil
}

func readReturns(path string, decimate int, logger golog.Logger) ([]lasward.Return, error) {
	if decimate < 1 {
		return nil, errors.Errorf("decimation must be at least 1, got %d", decimate)
	}
	lf, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "opening las file %s", path)
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	returns := make([]lasward.Return, 0, lf.Header.NumberPoints/decimate+1)
	for i := 0; i < lf.Header.NumberPoints; i += decimate {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, errors.Wrapf(err, "reading las point %d", i)
		}
		data := p.PointData()
		returns = append(returns, lasward.Return{
			X:         data.X,
			Y:         data.Y,
			Z:         data.Z,
			ScanAngle: float64(data.ScanAngle),
			Time:      p.GpsTimeData(),
		})
	}
	logger.Debugw("read las file", "path", path, "points", lf.Header.NumberPoints, "kept", len(returns))
	return returns, nil
}

// measurementsFor binds every return to its interpolated pose, skipping
// returns outside the trajectory and aggregating their errors.
func measurementsFor(engine *lasward.Engine, returns []lasward.Return) ([]*measurement.Measurement, error) {
	measurements := make([]*measurement.Measurement, 0, len(returns))
	var errs error
	for i, ret := range returns {
		m, err := engine.Measurement(ret)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "return %d", i))
			continue
		}
		measurements = append(measurements, m)
	}
	return measurements, errs
}

// withCSV runs fn against a CSV writer on the output flag's file, or stdout
// when the flag is unset.
func withCSV(c *cli.Context, fn func(w *csv.Writer) error) (err error) {
	out := io.Writer(c.App.Writer)
	if path := c.Path(flagOutput); path != "" {
		f, ferr := os.Create(path)
		if ferr != nil {
			return errors.Wrapf(ferr, "creating output file %s", path)
		}
		defer func() {
			err = multierr.Combine(err, f.Close())
		}()
		out = f
	}
	w := csv.NewWriter(out)
	werr := fn(w)
	w.Flush()
	return multierr.Combine(werr, w.Error())
}

func row(fields ...float64) []string {
	out := make([]string, len(fields))
	for i, field := range fields {
		out[i] = strconv.FormatFloat(field, 'f', 6, 64)
	}
	return out
}
