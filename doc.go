// Package agriml trains and serves a crop recommendation model built from
// environmental field measurements: soil chemistry, climate and vegetation
// indices. Economic and recommendation-helper fields never reach the model.
//
// # Training
//
// A run loads the raw table, writes a data-quality report, validates the
// data and holds out a stratified test split before anything is fitted.
// Feature engineering and preprocessing statistics come from the training
// split only and are stored with the model, so inference applies exactly the
// same transforms. Hyperparameters are searched with stratified k-fold
// cross-validation and a median pruner, then the final model is refit with
// an iteration budget derived from the folds' best iterations.
//
//	cfg := config.Default()
//	out, err := pipeline.New(cfg).Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(out.Version, out.Report.Accuracy)
//
// # Inference
//
// Saved bundles (model, label encoder, metadata) are versioned by timestamp
// and a hash of the training matrix. A manifest in SQLite records every
// version; the newest one is loaded unless a version is requested.
//
//	store, _ := artifact.Open(ctx, "models")
//	bundle, _ := store.LoadLatest(ctx)
//	p, _ := predict.NewPredictor(bundle, cfg.Inference, nil)
//	results, _ := p.PredictRecords([]frame.Record{{"pH": 6.4, "Rainfall": 900}}, 3)
//
// # Packages
//
//   - config: settings document with defaults and AGRIML_* overrides
//   - dataset: loading, cleaning, leakage removal, validation, quality report
//   - features, preprocessing: engineered features and fitted transforms
//   - boost: gradient-boosted oblivious trees for multi-class targets
//   - tuning, training: search, split, cross-validation, final fit
//   - evaluation, metrics: held-out report and charts
//   - artifact, predict, thresholds: persistence and ranked recommendations
//   - pipeline, cmd/agriml: orchestration and the command line
package agriml
