package logjs

const helpersJS = `
(function(){
  function namedCapture(line, re) {
    if (typeof line !== "string") return null;
    if (!(re instanceof RegExp)) return null;
    const m = re.exec(line);
    if (!m) return null;
    if (!m.groups) return null;
    const out = {};
    for (const k of Object.keys(m.groups)) out[k] = m.groups[k];
    return out;
  }

  function extract(line, re, group) {
    if (typeof line !== "string") return null;
    if (!(re instanceof RegExp)) return null;
    const m = re.exec(line);
    if (!m) return null;
    const idx = (typeof group === "number") ? group : 1;
    const v = m[idx];
    return (typeof v === "string") ? v : null;
  }

  // iteration(line, re, group?) -> integer or null. The capture group (named
  // "n" or the first positional one) must hold the iteration number.
  function iteration(line, re, group) {
    if (typeof line !== "string") return null;
    if (!(re instanceof RegExp)) return null;
    const m = re.exec(line);
    if (!m) return null;
    let v;
    if (m.groups && typeof m.groups.n === "string") v = m.groups.n;
    else v = m[(typeof group === "number") ? group : 1];
    if (typeof v !== "string") return null;
    const n = parseInt(v, 10);
    return (isNaN(n) || n < 0) ? null : n;
  }

  function containsAny(line, needles) {
    if (typeof line !== "string" || !Array.isArray(needles)) return false;
    const lower = line.toLowerCase();
    for (const n of needles) {
      if (typeof n === "string" && n !== "" && lower.indexOf(n.toLowerCase()) >= 0) return true;
    }
    return false;
  }

  globalThis.log = {
    namedCapture,
    extract,
    iteration,
    containsAny,
  };
})();
`
