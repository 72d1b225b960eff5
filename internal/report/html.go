package report

import (
	"html/template"
	"io"
)

// safeURL lets non-https schemes through to href attributes. Report
// URLs come from spec files and mirror configuration, and linking a
// broken ftp URL is the whole point of the report.
var htmlFuncs = template.FuncMap{
	"safeURL": func(s string) template.URL { return template.URL(s) },
}

var urlTemplate = template.Must(template.New("url").Funcs(htmlFuncs).Parse(urlReportHTML))

var versionTemplate = template.Must(template.New("version").Funcs(htmlFuncs).Parse(versionReportHTML))

// RenderURLHTML writes the URL report as a standalone HTML page.
func RenderURLHTML(w io.Writer, report *URLReport) error {
	return urlTemplate.Execute(w, report)
}

// RenderVersionHTML writes the version report as a standalone HTML page.
func RenderVersionHTML(w io.Writer, report *VersionReport) error {
	return versionTemplate.Execute(w, report)
}

const urlReportHTML = `<!DOCTYPE html>
<html lang="en"><head>
<meta charset="utf-8" />
<meta name="generator" content="speclens" />
<title>Spec URL Report</title>
<style>
  .shaded { background-color: #f0f0f0; }
  .nowrap { min-width: 1%; white-space: nowrap; }
</style>
</head>
<body>
<h1>Spec URL Check Report as of {{.GeneratedAt.Format "2006-01-02"}}</h1>
<p>
{{.Total}} URLs were checked<br />
{{.Bad}} URLs were bad<br />
{{.Insecure}} URLs were insecure<br />
</p>
<a href="#bad_urls">Bad URLs</a><br />
<a href="#insecure_urls">Insecure URLs</a><br />

<a id="bad_urls"></a>
<h2>Spec files with bad URLs</h2>
<!-- Extract the data in this table in CSV format with the command:
     xmlstarlet sel -t -m '//table[@id="badurls"]/tr[td]' -v 'td[1]' -o ',' -v 'td[2]' -o ',' -v 'td[3]' -o ',' -v 'td[4]' -o ',' -v 'td[6]' -nl
-->
<table id="badurls" summary="Package URLs that were determined to be bad in some way along with ownership, use and additional information.">
<tr>
  <th title="The registered maintainer of the package" class="shaded nowrap">Maintainer</th>
  <th title="The package spec name" class="nowrap">Package</th>
  <th title="Whether the URL was used for the package home page, a source or a patch" class="shaded nowrap">URL Use</th>
  <th title="What went wrong when checking the URL" class="nowrap">Error</th>
  <th title="Links to information sources regarding this package" class="shaded nowrap">Info</th>
  <th title="The URL that was checked">URL</th>
</tr>
{{range .BadRows}}<tr>
  <td class="shaded nowrap">{{.Maintainer}}</td>
  <td class="nowrap">{{.Package}}</td>
  <td class="shaded nowrap">{{.Use.Label}}</td>
  <td class="nowrap">{{.Status.Description}}{{with .Note}} ({{.}}){{end}}</td>
  <td class="shaded nowrap">
    <a href="{{safeURL .SVN}}">SVN</a>
    <a href="{{safeURL .RM}}">RM</a>
    <a href="{{safeURL .FSD}}">FSD</a>
    <a href="{{safeURL .Arc}}">Arc</a>
    {{with .HomeURL}}<a href="{{safeURL .}}">home</a>{{end}}
    {{with .HTTPSURL}}<a href="{{safeURL .}}">https</a>{{end}}
  </td>
  <td><a href="{{safeURL .URL}}">{{.URL}}</a></td>
</tr>
{{end}}</table>

<a id="insecure_urls"></a>
<h2>Spec files with insecure URLs</h2>
<!-- Extract the data in this table in CSV format with the command:
     xmlstarlet sel -t -m '//table[@id="insecureurls"]/tr[td]' -v 'td[1]' -o ',' -v 'td[2]' -o ',' -v 'td[3]' -o ',' -v 'td[5]' -nl
-->
<table id="insecureurls" summary="Package URLs that point to unencrypted resources.">
<tr>
  <th title="The registered maintainer of the package" class="shaded nowrap">Maintainer</th>
  <th title="The package spec name" class="nowrap">Package</th>
  <th title="Whether the URL was used for the package home page, a source or a patch" class="shaded nowrap">URL Use</th>
  <th title="Links to information sources regarding this package" class="shaded nowrap">Info</th>
  <th title="The URL in question">URL</th>
</tr>
{{range .InsecureRows}}<tr>
  <td class="shaded nowrap">{{.Maintainer}}</td>
  <td class="nowrap">{{.Package}}</td>
  <td class="shaded nowrap">{{.Use.Label}}</td>
  <td class="shaded nowrap">
    {{with .HomeURL}}<a href="{{safeURL .}}">home</a>{{end}}
    <a href="{{safeURL .HTTPSURL}}">https</a>
  </td>
  <td><a href="{{safeURL .URL}}">{{.URL}}</a></td>
</tr>
{{end}}</table>
</body>
</html>
`

const versionReportHTML = `<!DOCTYPE html>
<html lang="en"><head>
<meta charset="utf-8" />
<meta name="generator" content="speclens" />
<title>Spec Build Report</title>
<style>
  .release { background-color: #e0e0ff; }
  .distrib { background-color: #ffe0e0; }
</style>
</head>
<body>
<h1>{{.Version}} ({{.Release}}) Spec Build Report as of {{.GeneratedAt.Format "2006-01-02"}}</h1>
{{if .NoSrpm}}<a href="#no_rpm">Missing RPMs</a><br />
{{end}}<a href="#wrong_version">Wrong RPM version</a><br />
{{if .ParseErrors}}<a href="#errors">Spec parsing errors</a><br />
{{end}}{{if .Matches}}<a href="#match_version">Matching RPM versions</a><br />
{{end}}
{{if .NoSrpm}}
<a id="no_rpm"></a>
<h2>Spec files with no matching RPM of any version</h2>
<p>
There is no package SRPM in the {{.Version}} release matching the associated
spec file. This may be because the package was imported but never
successfully built, or because the package has been obsoleted and
removed from the distribution but the spec file was never moved to
the obsolete tree.
</p>
<p>({{len .NoSrpm}} packages)</p>
<!-- Extract the data in this table in CSV format with the command:
     xmlstarlet sel -t -m '//table[@id="norpms"]/tr[td]' -v 'td[2]' -o ',' -v 'td[1]' -nl
-->
<table id="norpms">
<tr>
  <th>Maintainer</th>
  <th>Package</th>
</tr>
{{range .NoSrpm}}<tr>
  <td>{{.Maintainer}}</td>
  <td><a href="{{safeURL .SVN}}">{{.Package}}</a></td>
</tr>
{{end}}</table>
{{end}}
<a id="wrong_version"></a>
<h2>Wrong RPM version</h2>
<p>
The latest version of the SRPM does not match the version in the spec
file. This may be because no one has submitted the latest version to
be built, or because the last attempted build failed. This section will
be very large between the time a distro release is branched and the
first mass build of the next release version.
A package may also show up here as a false positive if it was
changed or built around the same time this report was generated.
<span class="release">Blue shaded lines</span> are packages with
equal versions that differ only in the release number.
<span class="distrib">Red shaded lines</span> are packages that
have not been rebuilt since the last distribution release.
</p>
<p>({{len .Mismatches}} packages)</p>
<!-- Extract the data in this table in CSV format with the command:
     xmlstarlet sel -t -m '//table[@id="wrongversions"]/tr[td]' -v 'td[2]' -o ',' -v 'td[3]' -o ',' -v 'td[1]' -nl
-->
<table id="wrongversions">
<tr>
  <th>Maintainer</th>
  <th>RPM version</th>
  <th>Spec version</th>
</tr>
{{range .Mismatches}}<tr{{with .Class}} class="{{.}}"{{end}}>
  <td>{{.Maintainer}}</td>
  <td>{{.Published}}</td>
  <td><a href="{{safeURL .SVN}}">{{.Spec}}</a></td>
</tr>
{{end}}</table>
{{if .ParseErrors}}
<a id="errors"></a>
<h2>Could not determine version number from these packages</h2>
<p>
This could be due to a syntax error in the spec file, a missing
include file, a missing utility used in command substitution, a
mismatch between the checkout directory and the spec file name, or an
internal error in the tool generating this report.
</p>
<p>({{len .ParseErrors}} packages)</p>
<!-- Extract the data in this table in CSV format with the command:
     xmlstarlet sel -t -m '//table[@id="noversions"]/tr[td]' -v 'td[1]' -nl
-->
<table id="noversions">
<tr>
  <th>Package</th>
</tr>
{{range .ParseErrors}}<tr>
  <td><a href="{{safeURL .SVN}}">{{.Package}}</a></td>
</tr>
{{end}}</table>
{{end}}
{{if .Matches}}
<a id="match_version"></a>
<h2>Spec &amp; RPM versions match</h2>
<p>
The version of the SRPM matches the version in the spec file. This is
the desired state, so these are the only packages without error.
</p>
{{if .MatchesListed}}<p>({{len .Matches}} packages)</p>
<!-- Extract the data in this table in CSV format with the command:
     xmlstarlet sel -t -m '//table[@id="matchingversions"]/tr[td]' -v 'td[2]' -o ',' -v 'td[1]' -nl
-->
<table id="matchingversions">
<tr>
  <th>Maintainer</th>
  <th>Spec/RPM version</th>
</tr>
{{range .Matches}}<tr>
  <td>{{.Maintainer}}</td>
  <td>{{.Spec}}</td>
</tr>
{{end}}</table>
{{else}}<p>{{len .Matches}} spec files have matching RPMs (not shown)</p>
{{end}}{{end}}
</body>
</html>
`
