// Package easyfit fits and compares several learners on one table with a
// single call.
//
// Given a training table, a target column and a list of algorithm names,
// Run looks each algorithm up in the dispatch table (package registry),
// optionally tunes its hyperparameters over cross-validation folds
// (package tune), fits the selected model on the whole training set and
// evaluates it on held out data (package metrics). Package report prints and
// plots the results.
//
// # Quick Start
//
//	train, err := dataset.ReadCSVFile("iris.csv", dataset.CSVOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := easyfit.Run(ctx, train, "Species",
//	    []string{"logistic_reg", "rand_forest", "knn"},
//	    easyfit.WithFolds(5, 1),
//	    easyfit.WithGrid(tune.LatinHypercube, 10),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report.PrintSummary(os.Stdout, res)
//
// The learners themselves live in packages linear, tree, neighbors and
// naivebayes. Fitting is delegated to gonum and golearn.
//
// # Error Handling
//
// A failing algorithm does not stop the run: its Fit carries the error and
// the remaining algorithms continue. Library panics during fitting become
// *errors.PanicError values.
//
// # Logging
//
// Run logs through pkg/log. Call log.SetupLogger to install the zerolog
// backend; every record of one run carries its run id.
package easyfit
