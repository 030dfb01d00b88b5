// Package config loads the settings of the easyfit command from a file,
// EASYFIT_* environment variables and command line flags.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/easyfit"
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/tune"
)

// EnvPrefix prefixes every environment variable, e.g. EASYFIT_TUNE_GRID.
const EnvPrefix = "EASYFIT"

// Config is the configuration of one easyfit run.
type Config struct {
	Train      string   `mapstructure:"train" validate:"required"`
	Test       string   `mapstructure:"test"`
	Target     string   `mapstructure:"target" validate:"required"`
	Algorithms []string `mapstructure:"algorithms" validate:"required,min=1,dive,required"`
	Mode       string   `mapstructure:"mode" validate:"omitempty,oneof=regression classification"`
	Metrics    []string `mapstructure:"metrics" validate:"dive,required"`

	DropMissing bool   `mapstructure:"drop_missing"`
	Seed        uint64 `mapstructure:"seed"`
	Workers     int    `mapstructure:"workers" validate:"gte=0"`

	Split    SplitConfig    `mapstructure:"split"`
	Resample ResampleConfig `mapstructure:"resample"`
	Tune     TuneConfig     `mapstructure:"tune"`
	CSV      CSVConfig      `mapstructure:"csv"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
}

// SplitConfig configures the initial split used when no test file is given.
type SplitConfig struct {
	Prop   float64 `mapstructure:"prop" validate:"gt=0,lt=1"`
	Strata string  `mapstructure:"strata"`
}

// ResampleConfig configures the cross-validation folds used for tuning.
type ResampleConfig struct {
	Folds   int `mapstructure:"folds" validate:"gte=2"`
	Repeats int `mapstructure:"repeats" validate:"gte=1"`
}

// TuneConfig configures the hyperparameter search.
type TuneConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Grid       string `mapstructure:"grid" validate:"oneof=regular latin_hypercube lhs random bayes"`
	Size       int    `mapstructure:"size" validate:"gte=1"`
	Iterations int    `mapstructure:"iterations" validate:"gte=1"`
	Metric     string `mapstructure:"metric"`
	Rule       string `mapstructure:"rule" validate:"oneof=best one_std_err"`
}

// CSVConfig configures the CSV reader.
type CSVConfig struct {
	Separator   string   `mapstructure:"separator" validate:"separator"`
	Missing     []string `mapstructure:"missing"`
	Categorical []string `mapstructure:"categorical"`
}

// OutputConfig selects what is printed and written after the run.
type OutputConfig struct {
	// Top is the number of tuning candidates printed per algorithm; 0 hides
	// the tuning tables.
	Top       int    `mapstructure:"top" validate:"gte=0"`
	Confusion bool   `mapstructure:"confusion"`
	PlotDir   string `mapstructure:"plot_dir"`
	// PlotFormat is the file extension of the plots.
	PlotFormat string `mapstructure:"plot_format" validate:"oneof=png svg pdf"`
	// Coefficients is a directory receiving the weights of linear fits as JSON.
	Coefficients string `mapstructure:"coefficients"`
	Progress     bool   `mapstructure:"progress"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Console bool   `mapstructure:"console"`
}

// SetDefaults registers the defaults of every key. Keys without a default
// would not be read from the environment.
func SetDefaults(v *viper.Viper) {
	d := easyfit.DefaultOptions()
	v.SetDefault("train", "")
	v.SetDefault("test", "")
	v.SetDefault("target", "")
	v.SetDefault("algorithms", []string{})
	v.SetDefault("mode", "")
	v.SetDefault("metrics", []string{})
	v.SetDefault("drop_missing", d.DropMissing)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("workers", d.Workers)

	v.SetDefault("split.prop", d.Prop)
	v.SetDefault("split.strata", "")
	v.SetDefault("resample.folds", d.Folds)
	v.SetDefault("resample.repeats", d.Repeats)

	v.SetDefault("tune.enabled", d.Tune)
	v.SetDefault("tune.grid", string(d.GridType))
	v.SetDefault("tune.size", d.GridSize)
	v.SetDefault("tune.iterations", d.BayesIterations)
	v.SetDefault("tune.metric", "")
	v.SetDefault("tune.rule", d.SelectRule)

	v.SetDefault("csv.separator", ",")
	v.SetDefault("csv.missing", dataset.DefaultMissing)
	v.SetDefault("csv.categorical", []string{})

	v.SetDefault("output.top", 5)
	v.SetDefault("output.confusion", true)
	v.SetDefault("output.plot_dir", "")
	v.SetDefault("output.plot_format", "png")
	v.SetDefault("output.coefficients", "")
	v.SetDefault("output.progress", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes and
// validates the result. The file type follows the extension (yaml, toml,
// json, ...).
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	vd := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their config keys
	vd.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = vd.RegisterValidation("separator", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || s == `\t` || utf8.RuneCountInString(s) == 1
	})
	return vd
}

// Validate checks the field constraints. The first violated field is
// reported as a ValidationError naming every violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return errors.Wrap(err, "validate config")
	}
	reasons := make([]string, len(fields))
	for i, fe := range fields {
		reasons[i] = describe(fe)
	}
	first := fields[0]
	return errors.NewValidationError(key(first), strings.Join(reasons, "; "), first.Value())
}

// key returns the config key of a field, e.g. tune.grid.
func key(fe validator.FieldError) string {
	return strings.TrimPrefix(fe.Namespace(), "Config.")
}

func describe(fe validator.FieldError) string {
	k := key(fe)
	switch fe.Tag() {
	case "required":
		return k + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", k, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", k, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte", "lt", "lte":
		ops := map[string]string{"gt": ">", "gte": ">=", "lt": "<", "lte": "<="}
		return fmt.Sprintf("%s must be %s %s", k, ops[fe.Tag()], fe.Param())
	case "separator":
		return k + " must be a single character"
	default:
		return fmt.Sprintf("%s fails %s", k, fe.Tag())
	}
}

// CSVOptions returns the reader options.
func (c *Config) CSVOptions() dataset.CSVOptions {
	opts := dataset.CSVOptions{Missing: c.CSV.Missing, Categorical: c.CSV.Categorical}
	switch c.CSV.Separator {
	case "":
	case `\t`:
		opts.Comma = '\t'
	default:
		opts.Comma, _ = utf8.DecodeRuneInString(c.CSV.Separator)
	}
	return opts
}

// Options converts the configuration to Run options. Test data, logger and
// progress are left to the caller.
func (c *Config) Options() ([]easyfit.Option, error) {
	grid, err := tune.ParseGridType(c.Tune.Grid)
	if err != nil {
		return nil, err
	}
	opts := []easyfit.Option{
		easyfit.WithSplit(c.Split.Prop, c.Split.Strata),
		easyfit.WithFolds(c.Resample.Folds, c.Resample.Repeats),
		easyfit.WithTuning(c.Tune.Enabled),
		easyfit.WithSelection(c.Tune.Metric, c.Tune.Rule),
		easyfit.WithDropMissing(c.DropMissing),
		easyfit.WithSeed(c.Seed),
		easyfit.WithWorkers(c.Workers),
	}
	if grid == tune.Bayesian {
		opts = append(opts, easyfit.WithBayes(c.Tune.Iterations))
	} else {
		opts = append(opts, easyfit.WithGrid(grid, c.Tune.Size))
	}
	if c.Mode != "" {
		mode, err := model.ParseMode(c.Mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, easyfit.WithMode(mode))
	}
	if len(c.Metrics) > 0 {
		opts = append(opts, easyfit.WithMetrics(c.Metrics...))
	}
	return opts, nil
}
