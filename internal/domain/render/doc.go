/*
Package render turns a package definition and user options into a deployable
application definition.

Rendering runs in four steps:

 1. Context: the defaults declared in the package's config schema, overlaid
    with the user's options, validated against the schema, overlaid with the
    package's resource assets under "resource".
 2. Template: the package's mustache template is expanded against the
    context without HTML escaping. The output must be a JSON object.
 3. Labels: the template's labels are overlaid with labels that identify the
    package and, last, with computed labels that nothing can override.
 4. Id: an explicit app id replaces whatever id the template produced.

A package without a template renders to nothing. Rendering has no side
effects and needs no locking.

	r := render.NewRenderer(logger, metrics)
	app, err := r.RenderApplication("https://universe.mesosphere.com/repo", def, options, nil)
*/
package render
